package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowEviction(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}

	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []float64{3, 4, 5}, w.Values())

	last, ok := w.Last()
	assert.True(t, ok)
	assert.Equal(t, 5.0, last)
}

func TestWindowFromEnd(t *testing.T) {
	w := NewWindow(10)
	for _, v := range []float64{10, 20, 30} {
		w.Push(v)
	}

	v, ok := w.FromEnd(0)
	assert.True(t, ok)
	assert.Equal(t, 30.0, v)

	v, ok = w.FromEnd(2)
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, ok = w.FromEnd(3)
	assert.False(t, ok)

	_, ok = w.FromEnd(-1)
	assert.False(t, ok)
}

func TestWindowTail(t *testing.T) {
	w := NewWindow(5)
	for _, v := range []float64{1, 2, 3} {
		w.Push(v)
	}

	assert.Equal(t, []float64{2, 3}, w.Tail(2))
	assert.Equal(t, []float64{1, 2, 3}, w.Tail(10))
}

func TestWindowEmpty(t *testing.T) {
	w := NewWindow(4)
	assert.Equal(t, 0, w.Len())

	_, ok := w.Last()
	assert.False(t, ok)
}
