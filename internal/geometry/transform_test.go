package geometry

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	t.Run("even length yields n points in order", func(t *testing.T) {
		p := Transform([]float64{0, 0, 1, 0, 1, 1, 0, 1})
		require.Len(t, p, 1, "single outer ring, no holes")
		assert.Equal(t, orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, p[0])
	})

	t.Run("odd length drops the dangling value", func(t *testing.T) {
		coords := []float64{0, 0, 1, 0, 1, 1, 7}
		p := Transform(coords)
		require.Len(t, p, 1)
		assert.Equal(t, orb.Ring{{0, 0}, {1, 0}, {1, 1}}, p[0])
		assert.True(t, Dangling(coords))
	})

	t.Run("single value yields empty ring", func(t *testing.T) {
		p := Transform([]float64{3})
		require.Len(t, p, 1)
		assert.Empty(t, p[0])
	})

	t.Run("empty input", func(t *testing.T) {
		p := Transform(nil)
		require.Len(t, p, 1)
		assert.Empty(t, p[0])
		assert.False(t, Dangling(nil))
	})

	t.Run("ring is not closed automatically", func(t *testing.T) {
		r := Ring([]float64{31.49, 30.01, 31.50, 30.01, 31.50, 30.02})
		assert.Len(t, r, 3)
		assert.NotEqual(t, r[0], r[len(r)-1])
	})
}

func TestRing_PairPositions(t *testing.T) {
	coords := make([]float64, 20)
	for i := range coords {
		coords[i] = float64(i)
	}
	r := Ring(coords)
	require.Len(t, r, 10)
	for i, pt := range r {
		assert.Equal(t, coords[2*i], pt.X())
		assert.Equal(t, coords[2*i+1], pt.Y())
	}
}
