package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler_ZeroAttemptsReturnsCentroid(t *testing.T) {
	s := NewSeededSampler(1, DefaultShrinkMargin)
	poly := Rect(2, 2, 4, 6)

	pt, accepted := s.SampleDetailed(poly, nil, 0.1, 0)
	assert.False(t, accepted)
	assert.Equal(t, poly.Centroid(), pt)
	c := s.Sample(poly, nil, 0.1, 0)
	assert.InDelta(t, 3.0, c.X, 1e-9)
	assert.InDelta(t, 4.0, c.Y, 1e-9)
}

func TestSampler_AcceptedPointsRespectContract(t *testing.T) {
	poly := NewPolygon(Ring{{0, 0}, {3, 0}, {3, 1}, {1, 1}, {1, 3}, {0, 3}})
	const minDist = 0.2

	for seed := uint64(1); seed <= 20; seed++ {
		s := NewSeededSampler(seed, DefaultShrinkMargin)
		var placed []Point
		for i := 0; i < 12; i++ {
			pt, accepted := s.SampleDetailed(poly, placed, minDist, 50)
			if accepted {
				assert.True(t, poly.Contains(pt), "seed %d: %v outside polygon", seed, pt)
				assert.GreaterOrEqual(t, poly.BoundaryDistance(pt), DefaultShrinkMargin)
				for _, q := range placed {
					assert.GreaterOrEqual(t, pt.Distance(q), minDist, "seed %d: %v too close to %v", seed, pt, q)
				}
			} else {
				assert.Equal(t, poly.Centroid(), pt)
			}
			placed = append(placed, pt)
		}
	}
}

func TestSampler_DoesNotMutateExisting(t *testing.T) {
	s := NewSeededSampler(7, DefaultShrinkMargin)
	existing := make([]Point, 2, 8)
	existing[0] = Point{0.2, 0.2}
	existing[1] = Point{0.8, 0.8}
	before := append([]Point(nil), existing...)

	s.Sample(Rect(0, 0, 1, 1), existing, 0.1, 30)

	assert.Equal(t, before, existing)
	assert.Len(t, existing, 2)
}

func TestSampler_UnitSquareScenario(t *testing.T) {
	square := Rect(0, 0, 1, 1)
	shrunk, ok := Shrink(square, DefaultShrinkMargin)
	require.True(t, ok)

	t.Run("three points fit", func(t *testing.T) {
		s := NewSeededSampler(42, DefaultShrinkMargin)
		var placed []Point
		for i := 0; i < 3; i++ {
			pt, accepted := s.SampleDetailed(square, placed, 0.3, 30)
			require.True(t, accepted, "point %d fell back to the centroid", i)
			assert.True(t, shrunk.Contains(pt))
			placed = append(placed, pt)
		}
		for i := range placed {
			for j := i + 1; j < len(placed); j++ {
				assert.GreaterOrEqual(t, placed[i].Distance(placed[j]), 0.3)
			}
		}
	})

	t.Run("twenty points overflow", func(t *testing.T) {
		s := NewSeededSampler(42, DefaultShrinkMargin)
		var placed []Point
		fallbacks := 0
		for i := 0; i < 20; i++ {
			pt, accepted := s.SampleDetailed(square, placed, 0.3, 30)
			if !accepted {
				fallbacks++
				assert.Equal(t, square.Centroid(), pt)
			}
			placed = append(placed, pt)
		}
		// At most 16 points with 0.3 spacing fit in the 0.96 inset square.
		assert.GreaterOrEqual(t, fallbacks, 4)
	})
}

func TestSampler_DegenerateShrinkUsesOriginal(t *testing.T) {
	sliver := Rect(0, 0, 1, 0.03)
	s := NewSeededSampler(3, DefaultShrinkMargin)

	accepted := 0
	for i := 0; i < 10; i++ {
		pt, ok := s.SampleDetailed(sliver, nil, 0.01, 30)
		if ok {
			accepted++
			assert.True(t, sliver.Contains(pt))
		}
	}
	assert.Positive(t, accepted)
}

func TestSampler_SeedIsReproducible(t *testing.T) {
	a := NewSeededSampler(99, DefaultShrinkMargin)
	b := NewSeededSampler(99, DefaultShrinkMargin)
	poly := Rect(0, 0, 5, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Sample(poly, nil, 0, 10), b.Sample(poly, nil, 0, 10))
	}
}

func TestSampler_PreparedTarget(t *testing.T) {
	square := Rect(0, 0, 1, 1)

	t.Run("matches unprepared draws", func(t *testing.T) {
		a := NewSeededSampler(11, DefaultShrinkMargin)
		b := NewSeededSampler(11, DefaultShrinkMargin)
		target := b.Prepare(square)
		var pa, pb []Point
		for i := 0; i < 8; i++ {
			p1, ok1 := a.SampleDetailed(square, pa, 0.2, 30)
			p2, ok2 := b.SampleTarget(target, pb, 0.2, 30)
			assert.Equal(t, ok1, ok2)
			assert.Equal(t, p1, p2)
			pa, pb = append(pa, p1), append(pb, p2)
		}
	})

	t.Run("region is shrunk", func(t *testing.T) {
		target := NewSeededSampler(1, DefaultShrinkMargin).Prepare(square)
		_, ok := target.Region.(*Shrunk)
		assert.True(t, ok)
		assert.Equal(t, square.Centroid(), target.Centroid)
	})

	t.Run("sliver keeps polygon", func(t *testing.T) {
		sliver := Rect(0, 0, 1, 0.03)
		target := NewSeededSampler(1, DefaultShrinkMargin).Prepare(sliver)
		_, ok := target.Region.(Polygon)
		assert.True(t, ok)
	})

	t.Run("zero attempts uses cached centroid", func(t *testing.T) {
		s := NewSeededSampler(1, DefaultShrinkMargin)
		target := s.Prepare(square)
		pt, accepted := s.SampleTarget(target, nil, 0.1, 0)
		assert.False(t, accepted)
		assert.Equal(t, target.Centroid, pt)
	})
}
