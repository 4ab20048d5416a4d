// Package fuzztests holds fuzz harnesses for the input side of the
// pipeline: decoding front-end documents, building units from them, and
// lowering and emitting whatever survives. They guard against panics and
// hangs on malformed documents; diagnostics and errors are expected.
package fuzztests
