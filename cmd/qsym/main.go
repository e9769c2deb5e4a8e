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

// Command qsym loads a program from a JSON-encoded qbe.Definition array
// and symbolically executes one of its functions to completion.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gregorvand/qsym/config"
	"github.com/gregorvand/qsym/interp"
	"github.com/gregorvand/qsym/interp/state"
	"github.com/gregorvand/qsym/qbe"
	"github.com/gregorvand/qsym/smt"

	"golang.org/x/crypto/blake2b"

	"github.com/klauspost/compress/zstd"
)

func exitf(err error) {
	log.Print(err)
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: qsym [-trace] [-config FILE] [-dump-log FILE] PROGRAM.json FUNC\n")
	flag.PrintDefaults()
}

func main() {
	traceFlag := flag.Bool("trace", false, "print the per-label exploration trace to stderr")
	configFile := flag.String("config", "", "optional YAML file of exploration settings")
	dumpLog := flag.String("dump-log", "", "write the exploration trace zstd-compressed to this file (only when -trace is also set)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	progPath, funcName := flag.Arg(0), flag.Arg(1)

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			exitf(err)
		}
	}
	trace := *traceFlag || cfg.Trace

	progBytes, err := os.ReadFile(progPath)
	if err != nil {
		exitf(fmt.Errorf("qsym: read %s: %w", progPath, err))
	}

	runID, err := runIdentity(progBytes)
	if err != nil {
		exitf(err)
	}
	if trace {
		log.Printf("run %x: %s(%s)", runID, funcName, progPath)
	}

	var defs []qbe.Definition
	if err := json.Unmarshal(progBytes, &defs); err != nil {
		exitf(fmt.Errorf("qsym: parse %s: %w", progPath, err))
	}

	traceOut, closeTrace, err := openTraceSink(*dumpLog, trace)
	if err != nil {
		exitf(err)
	}
	defer closeTrace()

	ctx := smt.NewContext()
	solver := ctx.NewSolver()
	st, err := state.New(ctx, defs)
	if err != nil {
		exitf(err)
	}

	in := interp.New(ctx, solver, traceOut, trace, cfg.MaxForkDepth)
	if err := in.ExecSymbolic(st, funcName); err != nil {
		exitf(err)
	}
}

// runIdentity derives a short, content-addressed id for this run from the
// loaded program's bytes, following the teacher's db/fsenv.go pattern of
// hashing cacheable inputs with blake2b rather than a CRC or a random id.
func runIdentity(progBytes []byte) ([8]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return [8]byte{}, fmt.Errorf("qsym: blake2b: %w", err)
	}
	h.Write(progBytes)
	sum := h.Sum(nil)
	var id [8]byte
	copy(id[:], sum)
	return id, nil
}

// openTraceSink resolves where trace lines go: stderr by default, or a
// zstd-compressed file when -dump-log is combined with -trace, matching
// the teacher's compr package's streaming zstd.NewWriter usage.
func openTraceSink(dumpLog string, trace bool) (io.Writer, func(), error) {
	if dumpLog == "" || !trace {
		return os.Stderr, func() {}, nil
	}
	f, err := os.Create(dumpLog)
	if err != nil {
		return nil, nil, fmt.Errorf("qsym: create %s: %w", dumpLog, err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderConcurrency(1))
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("qsym: zstd writer: %w", err)
	}
	return zw, func() {
		zw.Close()
		f.Close()
	}, nil
}
