// Package acvm provides a witness-execution engine for compiled arithmetic
// circuits: given a circuit and a partially filled witness, it deterministically
// computes the remaining variable values, delegating computations that cannot
// be expressed as circuit arithmetic to an external oracle through a foreign
// call protocol.
//
// The entry point is the exec package; the solver package implements the
// constraint-solving engine it drives, and the foreigncall package the
// oracle protocol and its dispatcher.
package acvm

import (
	"github.com/blang/semver/v4"
)

var Version = semver.MustParse("0.1.0")
