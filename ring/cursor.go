package ring

import "iter"

// Cursor walks a ring one element at a time, forwards or backwards, for a
// fixed number of steps. It is single-use: ask the ring for a new cursor to
// walk again.
//
// Values are read from the ring as the cursor moves. Mutating the ring while
// a cursor is in flight gives unspecified results.
type Cursor[T any] struct {
	r       *Ring[T]
	step    int
	index   int
	left    int
	started bool
	value   T
	err     error
}

// ForwardRange walks forward from one position up to and including another.
// When both positions fold onto the same slot the walk covers one full lap
// starting at that slot, not a single element.
func (r *Ring[T]) ForwardRange(from, to int) *Cursor[T] {
	return r.rangeCursor(from, to, 1)
}

// BackwardRange is ForwardRange walking the other way.
func (r *Ring[T]) BackwardRange(from, to int) *Cursor[T] {
	return r.rangeCursor(from, to, -1)
}

// ForwardCount walks forward from a position, yielding count elements.
// Counts above Len() lap the ring again.
func (r *Ring[T]) ForwardCount(from, count int) *Cursor[T] {
	return r.countCursor(from, count, 1)
}

func (r *Ring[T]) BackwardCount(from, count int) *Cursor[T] {
	return r.countCursor(from, count, -1)
}

func (r *Ring[T]) rangeCursor(from, to, step int) *Cursor[T] {
	start, err := r.Normalize(from)
	if err != nil {
		return &Cursor[T]{err: err}
	}
	end, _ := r.Normalize(to)

	left := r.count
	if start != end {
		d, _ := r.Normalize((end - start) * step)
		left = d + 1
	}
	return &Cursor[T]{r: r, step: step, index: start, left: left}
}

func (r *Ring[T]) countCursor(from, count, step int) *Cursor[T] {
	if count <= 0 {
		return &Cursor[T]{}
	}
	start, err := r.Normalize(from)
	if err != nil {
		return &Cursor[T]{err: err}
	}
	return &Cursor[T]{r: r, step: step, index: start, left: count}
}

// Next advances to the next element. It returns false once the walk is
// complete or an error stopped it.
func (c *Cursor[T]) Next() bool {
	if c.err != nil || c.left <= 0 {
		return false
	}

	if c.started {
		next, err := c.r.Normalize(c.index + c.step)
		if err != nil {
			c.err = err
			return false
		}
		c.index = next
	}
	c.started = true

	v, err := c.r.Slot(c.index)
	if err != nil {
		c.err = err
		return false
	}
	c.value = v
	c.left--
	return true
}

// Index is the slot of the current element.
func (c *Cursor[T]) Index() int {
	return c.index
}

func (c *Cursor[T]) Value() T {
	return c.value
}

func (c *Cursor[T]) Err() error {
	return c.err
}

// Remaining is the number of elements the cursor has yet to yield.
func (c *Cursor[T]) Remaining() int {
	if c.err != nil {
		return 0
	}
	return c.left
}

// All drains the cursor as a range-over-func sequence of (slot, value).
func (c *Cursor[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for c.Next() {
			if !yield(c.index, c.value) {
				return
			}
		}
	}
}

// Collect drains the cursor into a slice of values.
func (c *Cursor[T]) Collect() ([]T, error) {
	var out []T
	for c.Next() {
		out = append(out, c.value)
	}
	return out, c.err
}
