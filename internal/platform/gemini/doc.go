// Package gemini provides an implementation of the generation.Generator
// interface backed by Google's Gemini API (google.golang.org/genai).
//
// The generator renders a prompt template for one difficulty tier, sends it
// either alone (text mode) or alongside the topic's PDF as an inline part
// (document mode), requests a JSON response and converts it into domain
// questions. Transient API failures are retried with exponential backoff and
// jitter; blocked and malformed responses are returned immediately.
package gemini
