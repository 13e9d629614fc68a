package geometry

import "math/rand/v2"

// DefaultShrinkMargin keeps sampled markers off district borders.
const DefaultShrinkMargin = 0.02

// Sampler draws random points inside polygons while keeping a minimum
// distance from points already placed.
type Sampler struct {
	rng    *rand.Rand
	margin float64
}

// NewSampler creates a sampler using rng as its random source. A nil rng
// falls back to an unseeded source.
func NewSampler(rng *rand.Rand, margin float64) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng, margin: margin}
}

// NewSeededSampler creates a sampler whose output is reproducible for a seed.
func NewSeededSampler(seed uint64, margin float64) *Sampler {
	return NewSampler(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), margin)
}

// Margin returns the inward shrink applied before sampling.
func (s *Sampler) Margin() float64 {
	return s.margin
}

// Sample returns a point inside poly at least minDist away from every point in
// existing. After maxAttempts rejected draws it returns the centroid of poly.
// existing is never modified.
func (s *Sampler) Sample(poly Polygon, existing []Point, minDist float64, maxAttempts int) Point {
	pt, _ := s.SampleDetailed(poly, existing, minDist, maxAttempts)
	return pt
}

// SampleDetailed is Sample that also reports whether a random draw was
// accepted (false means the centroid fallback was used).
func (s *Sampler) SampleDetailed(poly Polygon, existing []Point, minDist float64, maxAttempts int) (Point, bool) {
	return s.SampleTarget(s.Prepare(poly), existing, minDist, maxAttempts)
}

// Target is a polygon prepared for repeated sampling: the shrunk region and
// the fallback centroid are computed once.
type Target struct {
	Polygon  Polygon
	Region   Region
	Centroid Point
}

// Prepare shrinks poly by the sampler margin. When the shrunk region is
// empty or poly is invalid the region is poly itself.
func (s *Sampler) Prepare(poly Polygon) *Target {
	t := &Target{Polygon: poly, Region: poly, Centroid: poly.Centroid()}
	if shrunk, ok := Shrink(poly, s.margin); ok {
		t.Region = shrunk
	}
	return t
}

// SampleTarget is SampleDetailed for a prepared polygon.
func (s *Sampler) SampleTarget(t *Target, existing []Point, minDist float64, maxAttempts int) (Point, bool) {
	if maxAttempts <= 0 {
		return t.Centroid, false
	}
	b := t.Region.Bounds()
	if b.IsEmpty() {
		return t.Centroid, false
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		pt := Point{
			X: b.MinX + s.rng.Float64()*b.Width(),
			Y: b.MinY + s.rng.Float64()*b.Height(),
		}
		if !t.Region.Contains(pt) {
			continue
		}
		if tooClose(pt, existing, minDist) {
			continue
		}
		return pt, true
	}
	return t.Centroid, false
}

func tooClose(pt Point, existing []Point, minDist float64) bool {
	for _, q := range existing {
		if pt.Distance(q) < minDist {
			return true
		}
	}
	return false
}
