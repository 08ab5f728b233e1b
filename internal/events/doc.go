// Package events carries pipeline observability events from the scanner and
// worker to any number of handlers.
//
// The primary components are:
//   - Event: a typed, correlation-scoped record of something that happened
//   - EventHandler: a destination for events (structured log, Redis channel)
//   - EventEmitter: fans events out to every registered handler
//
// Emission is best effort: a failing handler never changes the outcome of
// the operation that emitted the event.
package events
