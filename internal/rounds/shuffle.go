package rounds

// Mulberry32 is a small seeded generator. Reproducibility matters here,
// not unpredictability.
type Mulberry32 struct {
	state uint32
}

func NewMulberry32(seed int64) *Mulberry32 {
	return &Mulberry32{state: uint32(seed)}
}

// Float64 returns a value in [0, 1).
func (m *Mulberry32) Float64() float64 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return float64(t^t>>14) / 4294967296
}

// Shuffle returns a Fisher-Yates shuffled copy of in.
func Shuffle[T any](in []T, seed int64) []T {
	out := make([]T, len(in))
	copy(out, in)
	rng := NewMulberry32(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := int(rng.Float64() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
