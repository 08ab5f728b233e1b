// Package api exposes the pipeline's job handlers over HTTP. Every job route
// sits behind webhook signature verification; handlers translate envelopes
// and query strings into pipeline calls and map pipeline errors to status
// codes the queue interprets as "done" or "redeliver".
package api
