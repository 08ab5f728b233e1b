// Package domain holds the entities of the question pipeline: topics and
// their capacity ledger, subjects, and generated questions.
//
// The ledger rules live here so every store and the in-memory mocks apply
// the same clamp: a topic never records more consumed units than its
// capacity, and eligibility only ever moves from true to false.
package domain
