package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStrategy(t *testing.T) {
	t.Run("kalman by name", func(t *testing.T) {
		s, err := NewStrategy("kalman")
		require.NoError(t, err)
		assert.Equal(t, "kalman", s.Name())
	})

	t.Run("kalman is the default", func(t *testing.T) {
		s, err := NewStrategy("")
		require.NoError(t, err)
		assert.Equal(t, "kalman", s.Name())
	})

	t.Run("none", func(t *testing.T) {
		s, err := NewStrategy("none")
		require.NoError(t, err)
		assert.Equal(t, "none", s.Name())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := NewStrategy("median")
		assert.Error(t, err)
	})
}

func TestNoSmoothing(t *testing.T) {
	out := NoSmoothing{}.Smooth([]int{1, 0, 1, 1}, 4)
	assert.Equal(t, []float64{100, 0, 100, 100}, out)
}

func TestKalmanSmooth(t *testing.T) {
	k := NewKalman()

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, k.Smooth(nil, 1))
	})

	t.Run("constant input stays constant", func(t *testing.T) {
		out := k.Smooth([]int{1, 1, 1, 1}, 4)
		require.Len(t, out, 4)
		for _, v := range out {
			assert.InDelta(t, 100.0, v, 1e-6)
		}
	})

	t.Run("initial estimate is the first flag", func(t *testing.T) {
		out := k.Smooth([]int{0, 1, 1}, 3)
		require.Len(t, out, 3)
		assert.InDelta(t, 0.0, out[0], 1e-6)
		// The filter chases the new level without reaching it instantly.
		assert.Greater(t, out[1], out[0])
		assert.Greater(t, out[2], out[1])
		assert.Less(t, out[2], 100.0)
	})

	t.Run("output stays inside the value range", func(t *testing.T) {
		out := k.Smooth([]int{1, 0, 1, 0, 1, 0}, 6)
		for _, v := range out {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	})

	t.Run("smoother than the raw signal", func(t *testing.T) {
		raw := []int{1, 0, 1, 0, 1, 0, 1, 0}
		out := k.Smooth(raw, 8)
		// After the filter settles, consecutive outputs move far less than
		// the 100-point swings of the raw signal.
		for i := 3; i < len(out); i++ {
			assert.Less(t, abs(out[i]-out[i-1]), 100.0)
		}
	})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
