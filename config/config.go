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

// Package config loads the optional exploration settings cmd/qsym accepts
// via -config FILE: a depth guard against pathological branch explosions
// during development, and a verbose-tracing default. YAML input, parsed
// through its JSON-tag projection, matching the teacher's db/sync.go
// acceptance of either a .json or .yaml definition file for the same
// schema.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Config holds qsym's exploration settings.
type Config struct {
	// MaxForkDepth bounds how many nested CondJump explorations a single
	// run will perform before refusing to descend further (0 means
	// unbounded). It exists only as a development guard against a
	// runaway branch explosion in a malformed or adversarial program;
	// it has no counterpart in spec.md's semantics.
	MaxForkDepth int `json:"maxForkDepth,omitempty"`

	// Trace turns on the per-block exploration trace by default, without
	// requiring -trace on the command line.
	Trace bool `json:"trace,omitempty"`
}

// Default returns the zero-value Config: unbounded fork depth, tracing
// off.
func Default() Config {
	return Config{}
}

// Load reads and parses a YAML (or YAML-compatible JSON) config file.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}
