package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRawFromSummary(t *testing.T) {
	t.Run("empty overall series", func(t *testing.T) {
		assert.Zero(t, RawFromSummary(&Summary{}))
	})

	t.Run("mean of the overall series", func(t *testing.T) {
		s := &Summary{Overall: []Point{
			{Bucket: time.Now(), Value: 100},
			{Bucket: time.Now(), Value: 50},
			{Bucket: time.Now(), Value: 0},
		}}
		assert.InDelta(t, 0.5, RawFromSummary(s), 1e-9)
	})
}

func TestNormalize(t *testing.T) {
	t.Run("solo meeting gets the full boost", func(t *testing.T) {
		// N=1: boost = 1 + 0.8/log2(2) = 1.8, additive cap 0.5+0.25 wins.
		assert.InDelta(t, 0.75, Normalize(0.5, 1), 1e-9)
	})

	t.Run("large meeting gets a small boost", func(t *testing.T) {
		// N=63: boost = 1 + 0.8/log2(64) = 1.1333...
		assert.InDelta(t, 0.5*(1+0.8/6.0), Normalize(0.5, 63), 1e-9)
	})

	t.Run("additive cap limits the boost", func(t *testing.T) {
		// N=3: boost = 1.4, 0.8*1.4 = 1.12 > 0.8+0.25.
		assert.InDelta(t, 1.0, Normalize(0.8, 3), 1e-9)
	})

	t.Run("never exceeds one", func(t *testing.T) {
		assert.InDelta(t, 1.0, Normalize(1.0, 3), 1e-9)
	})

	t.Run("zero participants treated as one", func(t *testing.T) {
		assert.Equal(t, Normalize(0.5, 1), Normalize(0.5, 0))
	})

	t.Run("zero raw stays zero", func(t *testing.T) {
		assert.Zero(t, Normalize(0, 10))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0.75, LevelHigh},
		{0.60, LevelHigh},
		{0.59, LevelHealthy},
		{0.40, LevelHealthy},
		{0.39, LevelPassive},
		{0.20, LevelPassive},
		{0.19, LevelLow},
		{0.0, LevelLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.value), "value %v", tt.value)
	}
}
