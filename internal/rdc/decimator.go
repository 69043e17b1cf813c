package rdc

// DefaultDecimation is the number of loop samples per emitted output
const DefaultDecimation = 400

// Decimator passes one of every n samples.
type Decimator struct {
	n     int
	count int
}

// NewDecimator creates a Decimator emitting on every n-th sample; n < 1 is treated as 1.
func NewDecimator(n int) *Decimator {
	return &Decimator{n: max(n, 1)}
}

// Tick counts one sample and reports whether it should be emitted. The first
// emission happens on the n-th sample.
func (d *Decimator) Tick() bool {
	d.count++
	if d.count >= d.n {
		d.count = 0
		return true
	}
	return false
}

// Factor returns the decimation factor
func (d *Decimator) Factor() int {
	return d.n
}

// Reset clears the sample counter
func (d *Decimator) Reset() {
	d.count = 0
}
