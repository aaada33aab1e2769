// Package flows implements the table-driven state machine behind every
// flow controller.
//
// One Machine drives one flow instance: a Table names the idle, completed,
// and failed phases plus one Step per remote round-trip, and the Machine
// owns phase, loading, error, and retry bookkeeping. Controllers hand each
// action to Run as a closure over already-captured input; the mutex is
// released for the duration of the remote call and the outcome is applied
// on settlement unless Reset invalidated the attempt in the meantime.
//
// # Architecture boundaries
//
// The machine decides transitions, guards concurrent actions, and applies
// the retry policy. It does NOT validate business input beyond the rule
// closure it is handed, talk to the network, or emit audit/metrics —
// those belong to the flow controllers that own it.
//
// # What this package must NOT do
//
//   - Perform I/O directly; remote calls arrive as RunFunc closures.
//   - Import authflow (to avoid import cycles).
package flows
