package domain

import "fmt"

// TierSplit is the per-difficulty allocation of one generation batch.
type TierSplit struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

// Total returns the sum of all tiers. It may exceed the split input by up to
// two units of rounding slack.
func (s TierSplit) Total() int {
	return s.Easy + s.Medium + s.Hard
}

// Count returns the allocation for d.
func (s TierSplit) Count(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return s.Easy
	case DifficultyMedium:
		return s.Medium
	case DifficultyHard:
		return s.Hard
	default:
		return 0
	}
}

// SplitTiers divides n across the tiers: ceil(n/3) easy, ceil(n/3) medium,
// floor(n/3) hard. Negative n yields an empty split.
func SplitTiers(n int) TierSplit {
	if n <= 0 {
		return TierSplit{}
	}
	ceil := (n + 2) / 3
	return TierSplit{Easy: ceil, Medium: ceil, Hard: n / 3}
}

// Remaining returns how many units a topic may still consume. It is never
// negative.
func Remaining(capacity, consumed int) int {
	if r := capacity - consumed; r > 0 {
		return r
	}
	return 0
}

// Clamp bounds a requested batch to the remaining allowance.
func Clamp(requested, capacity, consumed int) int {
	if requested <= 0 {
		return 0
	}
	return min(requested, Remaining(capacity, consumed))
}

// CheckLedger validates a set of topic counters.
func CheckLedger(capacity, consumed, remainingToGenerate int) error {
	switch {
	case capacity < 0:
		return fmt.Errorf("%w: capacity %d is negative", ErrInvalidCapacity, capacity)
	case consumed < 0:
		return fmt.Errorf("%w: consumed %d is negative", ErrInvalidCapacity, consumed)
	case consumed > capacity:
		return fmt.Errorf("%w: consumed %d exceeds capacity %d", ErrInvalidCapacity, consumed, capacity)
	case remainingToGenerate < 0:
		return fmt.Errorf("%w: remaining_to_generate %d is negative", ErrInvalidCapacity, remainingToGenerate)
	}
	return nil
}

// LedgerStats is the topic counter state after a consumption.
type LedgerStats struct {
	Consumed              int  `json:"consumed"`
	Capacity              int  `json:"capacity"`
	RemainingToGenerate   int  `json:"remainingToGenerate"`
	EligibleForGeneration bool `json:"eligibleForGeneration"`
}

// Stats returns the topic's current counters.
func (t *Topic) Stats() LedgerStats {
	return LedgerStats{
		Consumed:              t.Consumed,
		Capacity:              t.Capacity,
		RemainingToGenerate:   t.RemainingToGenerate,
		EligibleForGeneration: t.EligibleForGeneration,
	}
}

// ApplyConsumption records up to saved units against the topic and returns
// how many were granted. The grant never pushes Consumed past Capacity,
// RemainingToGenerate never drops below zero, and EligibleForGeneration only
// ever transitions from true to false.
func (t *Topic) ApplyConsumption(saved int) int {
	granted := Clamp(saved, t.Capacity, t.Consumed)
	t.Consumed += granted
	t.RemainingToGenerate = max(t.RemainingToGenerate-granted, 0)
	if t.RemainingToGenerate == 0 {
		t.EligibleForGeneration = false
	}
	return granted
}
