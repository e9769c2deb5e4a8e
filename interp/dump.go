// Copyright (C) 2024 The qsym Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package interp

import (
	"fmt"

	"github.com/gregorvand/qsym/interp/state"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// dump prints the halted arm's local bindings and the solver's model of
// every free symbol created so far. Absence of a model
// at this point indicates a solver bug, not a recoverable program state.
func (in *Interpreter) dump(st *state.State, pathID string) {
	model, ok := in.solver.Model()
	if !ok {
		panic("interp: dump: no model available at HaltExecution")
	}

	fmt.Fprintf(in.out, "[%s] halt: locals:\n", pathID)
	locals := st.CurrentLocals()
	names := maps.Keys(locals)
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(in.out, "  %s = %s\n", name, model.Eval(locals[name]))
	}

	fmt.Fprintf(in.out, "[%s] halt: free symbols:\n", pathID)
	free := in.ctx.FreeSymbols()
	symbols := maps.Keys(free)
	slices.Sort(symbols)
	for _, name := range symbols {
		fmt.Fprintf(in.out, "  %s = %s\n", name, model.Eval(free[name]))
	}
}
