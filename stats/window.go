package stats

// Window is a fixed-capacity, insertion-ordered series of samples.
// The oldest sample is evicted when the capacity is exceeded.
type Window struct {
	cap  int
	vals []float64
}

// NewWindow creates a window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	return &Window{
		cap:  capacity,
		vals: make([]float64, 0, capacity),
	}
}

func (w *Window) Push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.cap {
		w.vals = w.vals[1:]
	}
}

func (w *Window) Len() int { return len(w.vals) }

// Last returns the most recent sample.
func (w *Window) Last() (float64, bool) {
	if len(w.vals) == 0 {
		return 0, false
	}
	return w.vals[len(w.vals)-1], true
}

// FromEnd returns the sample n positions back from the most recent,
// so FromEnd(0) == Last().
func (w *Window) FromEnd(n int) (float64, bool) {
	if n < 0 || n >= len(w.vals) {
		return 0, false
	}
	return w.vals[len(w.vals)-1-n], true
}

// Tail returns the most recent n samples in arrival order. If fewer
// than n samples exist, all of them are returned.
func (w *Window) Tail(n int) []float64 {
	if n >= len(w.vals) {
		return w.vals
	}
	return w.vals[len(w.vals)-n:]
}

// Values returns all samples in arrival order. The slice is shared
// with the window; callers must not mutate it.
func (w *Window) Values() []float64 { return w.vals }
