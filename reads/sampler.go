package reads

import "math/rand"

// downsampler makes seeded pseudo-random retention decisions, one draw per
// Keep call. The stream is deterministic for a given seed, so callers must
// draw at most once per candidate record and only when a decision is
// actually needed, or retained sample sets stop being reproducible.
type downsampler struct {
	fraction float64
	rnd      *rand.Rand
	draws    int
}

func newDownsampler(fraction float64, seed int64) *downsampler {
	return &downsampler{
		fraction: fraction,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// Keep draws once and reports whether the record should be retained.
func (d *downsampler) Keep() bool {
	d.draws++
	return d.rnd.Float64() < d.fraction
}
