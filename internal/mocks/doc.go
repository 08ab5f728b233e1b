// Package mocks provides centralized test doubles for the pipeline's
// collaborators.
//
// The store mocks keep state in memory and apply the same capacity rules as
// the Postgres implementation, so pipeline tests can assert on ledger
// counters without a database. Every mock records its calls and accepts an
// optional function field or error to override its default behavior:
//
//	topics := mocks.NewMockTopicStore(topic)
//	gen := &mocks.MockGenerator{Err: generation.ErrTransientFailure}
//
// When adding a new mock to this package, name the file after the interface
// being mocked and keep call tracking safe for concurrent use.
package mocks
