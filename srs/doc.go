// Package srs implements the spaced-repetition memory model: a pure
// state-transition engine over the FSRS v6 retrievability model, plus the
// normalizer that maps raw review outcomes onto the four-way rating scale.
//
// The engine performs no I/O. Callers own persistence of the updated
// MemoryState and the LogEntry audit record each transition produces.
package srs
