// Package pipeline implements the two job handlers of background question
// generation.
//
// Scanner pages through topics that are still eligible for generation,
// publishes one Envelope per topic and, while pages come back full, a
// delayed self-relay carrying the last-seen ID. Worker handles one Envelope:
// it clamps the request to the topic's remaining capacity, generates each
// difficulty tier in parallel under a deadline, and saves the result through
// the capacity ledger.
//
// Both handlers are transport-agnostic; internal/api exposes them over HTTP
// behind webhook signature verification.
package pipeline
