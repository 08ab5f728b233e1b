package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    int
		want TierSplit
	}{
		{n: 0, want: TierSplit{}},
		{n: -4, want: TierSplit{}},
		{n: 1, want: TierSplit{Easy: 1, Medium: 1, Hard: 0}},
		{n: 2, want: TierSplit{Easy: 1, Medium: 1, Hard: 0}},
		{n: 3, want: TierSplit{Easy: 1, Medium: 1, Hard: 1}},
		{n: 5, want: TierSplit{Easy: 2, Medium: 2, Hard: 1}},
		{n: 7, want: TierSplit{Easy: 3, Medium: 3, Hard: 2}},
		{n: 10, want: TierSplit{Easy: 4, Medium: 4, Hard: 3}},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, SplitTiers(tc.n), "n=%d", tc.n)
	}
}

func TestSplitTiersTotals(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 300; n++ {
		s := SplitTiers(n)
		assert.GreaterOrEqual(t, s.Easy, 0)
		assert.GreaterOrEqual(t, s.Medium, 0)
		assert.GreaterOrEqual(t, s.Hard, 0)
		assert.GreaterOrEqual(t, s.Total(), n, "n=%d under-allocates", n)
		assert.LessOrEqual(t, s.Total()-n, 2, "n=%d slack too large", n)
		assert.Equal(t, s.Easy, s.Count(DifficultyEasy))
		assert.Equal(t, s.Hard, s.Count(DifficultyHard))
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, Clamp(5, 10, 8))
	assert.Equal(t, 5, Clamp(5, 100, 8))
	assert.Equal(t, 0, Clamp(5, 10, 10))
	assert.Equal(t, 0, Clamp(5, 10, 12))
	assert.Equal(t, 0, Clamp(0, 10, 0))
	assert.Equal(t, 0, Clamp(-3, 10, 0))

	for capacity := 0; capacity <= 20; capacity++ {
		for consumed := 0; consumed <= capacity; consumed++ {
			for requested := 0; requested <= 25; requested++ {
				got := Clamp(requested, capacity, consumed)
				assert.LessOrEqual(t, got, capacity-consumed)
				assert.LessOrEqual(t, got, requested)
			}
		}
	}
}

func TestCheckLedger(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckLedger(10, 10, 0))
	require.NoError(t, CheckLedger(0, 0, 0))
	assert.ErrorIs(t, CheckLedger(10, 11, 0), ErrInvalidCapacity)
	assert.ErrorIs(t, CheckLedger(-1, 0, 0), ErrInvalidCapacity)
	assert.ErrorIs(t, CheckLedger(10, -1, 0), ErrInvalidCapacity)
	assert.ErrorIs(t, CheckLedger(10, 0, -1), ErrInvalidCapacity)
}

func TestApplyConsumption(t *testing.T) {
	t.Parallel()

	t.Run("reaches capacity and clears eligibility", func(t *testing.T) {
		topic := &Topic{ID: uuid.New(), Capacity: 10, Consumed: 8, RemainingToGenerate: 2, EligibleForGeneration: true}

		granted := topic.ApplyConsumption(2)

		assert.Equal(t, 2, granted)
		assert.Equal(t, 10, topic.Consumed)
		assert.Equal(t, 0, topic.RemainingToGenerate)
		assert.False(t, topic.EligibleForGeneration)
	})

	t.Run("grants only what fits", func(t *testing.T) {
		topic := &Topic{ID: uuid.New(), Capacity: 10, Consumed: 8, RemainingToGenerate: 50, EligibleForGeneration: true}

		granted := topic.ApplyConsumption(8)

		assert.Equal(t, 2, granted)
		assert.Equal(t, 10, topic.Consumed)
		assert.Equal(t, 48, topic.RemainingToGenerate)
		assert.True(t, topic.EligibleForGeneration)
	})

	t.Run("remaining never goes negative", func(t *testing.T) {
		topic := &Topic{ID: uuid.New(), Capacity: 100, Consumed: 0, RemainingToGenerate: 3, EligibleForGeneration: true}

		granted := topic.ApplyConsumption(5)

		assert.Equal(t, 5, granted)
		assert.Equal(t, 0, topic.RemainingToGenerate)
		assert.False(t, topic.EligibleForGeneration)
	})

	t.Run("eligibility never flips back", func(t *testing.T) {
		topic := &Topic{ID: uuid.New(), Capacity: 100, Consumed: 0, RemainingToGenerate: 30, EligibleForGeneration: false}

		topic.ApplyConsumption(1)

		assert.False(t, topic.EligibleForGeneration)
	})

	t.Run("full topic is a no-op", func(t *testing.T) {
		topic := &Topic{ID: uuid.New(), Capacity: 4, Consumed: 4, RemainingToGenerate: 0}

		assert.Zero(t, topic.ApplyConsumption(3))
		assert.Equal(t, 4, topic.Consumed)
	})
}
