// Package qstash integrates with Upstash QStash: Publisher enqueues delayed,
// retried HTTP jobs through the publish API, and Verifier authenticates the
// signed deliveries QStash makes back to this service.
package qstash
