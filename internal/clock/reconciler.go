package clock

// MinSamples is the lower bound on warm-up iterations used by Reconciler.
const MinSamples = 5

// Reconciler estimates the offset between the always-on and pausable clock
// domains.
type Reconciler struct {
	AlwaysOn Clock
	Pausable Clock
	// Samples is the number of back-to-back readings; values below
	// MinSamples are raised to MinSamples.
	Samples int
}

// Offset samples (always-on - pausable) repeatedly and returns the last
// reading. Early iterations pay for cold caches and are discarded.
func (r *Reconciler) Offset() int64 {
	n := r.Samples
	if n < MinSamples {
		n = MinSamples
	}

	var offset int64
	for i := 0; i < n; i++ {
		offset = r.AlwaysOn.Nanos() - r.Pausable.Nanos()
	}
	return offset
}

// Readings returns every (always-on - pausable) reading Offset would take,
// in order. Useful to see how quickly the estimate settles on a host.
func (r *Reconciler) Readings() []int64 {
	n := r.Samples
	if n < MinSamples {
		n = MinSamples
	}

	out := make([]int64, n)
	for i := range out {
		out[i] = r.AlwaysOn.Nanos() - r.Pausable.Nanos()
	}
	return out
}
