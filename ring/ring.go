// Package ring implements a circular sequence backed by a single slice.
//
// Positions passed to a Ring are arbitrary integers: they are folded into
// [0, Len()) before the buffer is touched, so -1 is the last element and
// Len() is the first again.
//
// A Ring may be built in joint mode. A joint ring stores one extra slot after
// the last element that always holds a copy of the first, so the physical
// buffer reads as a closed loop (a, b, c, a).
//
// A Ring is not safe for concurrent use.
package ring

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrEmpty      = errors.New("ring is empty")
	ErrOutOfRange = errors.New("slot out of range")
)

type Ring[T any] struct {
	values []T
	count  int
	joint  bool
}

// New builds a ring from values. In joint mode the last value is taken to be
// the joint slot and is overwritten with a copy of the first.
func New[T any](values []T, joint bool) *Ring[T] {
	r := &Ring[T]{
		values: slices.Clone(values),
		count:  len(values),
		joint:  joint,
	}
	if joint && r.count > 0 {
		r.count--
	}
	r.seal()
	return r
}

func Of[T any](values ...T) *Ring[T] {
	return New(values, false)
}

// seal trims the buffer to the logical elements and, for joint rings,
// re-appends the mirror of slot 0. Every mutation ends here.
func (r *Ring[T]) seal() {
	clear(r.values[r.count:])
	r.values = r.values[:r.count]
	if r.joint && r.count > 0 {
		r.values = append(r.values, r.values[0])
	}
}

func (r *Ring[T]) Joint() bool {
	return r.joint
}

func (r *Ring[T]) Len() int {
	return r.count
}

func (r *Ring[T]) Size() int {
	return r.Len()
}

func (r *Ring[T]) Count() int {
	return r.Len()
}

func (r *Ring[T]) IsEmpty() bool {
	return r.count == 0
}

// Normalize maps any position onto a slot index in [0, Len()).
func (r *Ring[T]) Normalize(pos int) (int, error) {
	if r.count == 0 {
		return 0, fmt.Errorf("normalize %d: %w", pos, ErrEmpty)
	}
	return ((pos % r.count) + r.count) % r.count, nil
}

func (r *Ring[T]) LocateByPosition(pos int) (int, error) {
	return r.Normalize(pos)
}

// NextIndex and PrevIndex fold pos onto the ring before stepping, so
// any int is accepted.
func (r *Ring[T]) NextIndex(pos int) (int, error) {
	k, err := r.Normalize(pos)
	if err != nil {
		return 0, err
	}
	return r.Normalize(k + 1)
}

func (r *Ring[T]) PrevIndex(pos int) (int, error) {
	k, err := r.Normalize(pos)
	if err != nil {
		return 0, err
	}
	return r.Normalize(k - 1)
}

func (r *Ring[T]) NextValue(pos int) (T, error) {
	k, err := r.NextIndex(pos)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.Slot(k)
}

func (r *Ring[T]) PrevValue(pos int) (T, error) {
	k, err := r.PrevIndex(pos)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.Slot(k)
}

// AreNeighbours reports whether a sits directly before or after b.
// On a ring of one element, the element is its own neighbour.
func (r *Ring[T]) AreNeighbours(a, b int) (bool, error) {
	ka, err := r.Normalize(a)
	if err != nil {
		return false, err
	}
	next, _ := r.NextIndex(b)
	prev, _ := r.PrevIndex(b)
	return ka == next || ka == prev, nil
}

// ForwardDistance counts the elements visited walking forward from one
// position to another, both ends included. Equal positions give 1.
func (r *Ring[T]) ForwardDistance(from, to int) (int, error) {
	f, t, err := r.normalizePair(from, to)
	if err != nil {
		return 0, err
	}
	d, _ := r.Normalize(t - f)
	return d + 1, nil
}

// BackwardDistance is ForwardDistance walking the other way.
func (r *Ring[T]) BackwardDistance(from, to int) (int, error) {
	f, t, err := r.normalizePair(from, to)
	if err != nil {
		return 0, err
	}
	d, _ := r.Normalize(f - t)
	return d + 1, nil
}

func (r *Ring[T]) normalizePair(a, b int) (int, int, error) {
	ka, err := r.Normalize(a)
	if err != nil {
		return 0, 0, err
	}
	kb, _ := r.Normalize(b)
	return ka, kb, nil
}

func (r *Ring[T]) ValueAt(pos int) (T, error) {
	k, err := r.Normalize(pos)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.Slot(k)
}

// Slot reads a physical slot without folding, the joint slot included.
func (r *Ring[T]) Slot(i int) (T, error) {
	if i < 0 || i >= len(r.values) {
		var zero T
		return zero, fmt.Errorf("slot %d of %d: %w", i, len(r.values), ErrOutOfRange)
	}
	return r.values[i], nil
}

func (r *Ring[T]) SetAt(pos int, v T) error {
	k, err := r.Normalize(pos)
	if err != nil {
		return err
	}
	if k >= len(r.values) {
		return fmt.Errorf("slot %d of %d: %w", k, len(r.values), ErrOutOfRange)
	}
	r.values[k] = v
	if k == 0 {
		r.seal()
	}
	return nil
}

// Locate returns the index of the first element equal to v. The joint slot
// is never reported. See Equal for the meaning of strict.
func (r *Ring[T]) Locate(v T, strict bool) (int, bool) {
	return r.LocateFunc(func(x T) bool {
		return Equal(x, v, strict)
	})
}

func (r *Ring[T]) LocateFunc(match func(T) bool) (int, bool) {
	for i, x := range r.values[:r.count] {
		if match(x) {
			return i, true
		}
	}
	return -1, false
}

func (r *Ring[T]) Append(v T) {
	r.values = append(r.values[:r.count], v)
	r.count++
	r.seal()
}

func (r *Ring[T]) Prepend(v T) {
	r.UnshiftFirst(v)
}

// UnshiftFirst inserts v in front of the first element and returns the
// resulting physical length.
func (r *Ring[T]) UnshiftFirst(v T) int {
	r.values = slices.Insert(r.values[:r.count], 0, v)
	r.count++
	r.seal()
	return len(r.values)
}

func (r *Ring[T]) PopLast() (T, error) {
	if r.count == 0 {
		var zero T
		return zero, fmt.Errorf("pop: %w", ErrEmpty)
	}
	v := r.values[r.count-1]
	r.count--
	r.seal()
	return v, nil
}

func (r *Ring[T]) ShiftFirst() (T, error) {
	if r.count == 0 {
		var zero T
		return zero, fmt.Errorf("shift: %w", ErrEmpty)
	}
	v := r.values[0]
	r.values = slices.Delete(r.values[:r.count], 0, 1)
	r.count--
	r.seal()
	return v, nil
}

// RemoveAt removes one element and returns it.
//
// Position 0 shifts the first element off. On a joint ring, any other
// position folding onto slot 0 addresses the joint and pops the last
// element, and a position folding onto slot 1 shifts the first.
func (r *Ring[T]) RemoveAt(pos int) (T, error) {
	if pos == 0 {
		return r.ShiftFirst()
	}
	k, err := r.Normalize(pos)
	if err != nil {
		var zero T
		return zero, err
	}
	if r.joint {
		switch k {
		case 0:
			return r.PopLast()
		case 1:
			return r.ShiftFirst()
		}
	}
	v := r.values[k]
	r.values = slices.Delete(r.values[:r.count], k, k+1)
	r.count--
	r.seal()
	return v, nil
}

// InsertAt places v so that it occupies the folded position, pushing the
// element there one step forward. The joint special cases mirror RemoveAt:
// slot 0 appends after the last element and slot 1 unshifts.
func (r *Ring[T]) InsertAt(pos int, v T) error {
	if pos == 0 {
		r.UnshiftFirst(v)
		return nil
	}
	k, err := r.Normalize(pos)
	if err != nil {
		return err
	}
	if r.joint {
		switch k {
		case 0:
			r.Append(v)
			return nil
		case 1:
			r.UnshiftFirst(v)
			return nil
		}
	}
	r.values = slices.Insert(r.values[:r.count], k, v)
	r.count++
	r.seal()
	return nil
}

// Slice returns a copy of the physical buffer, joint slot included.
func (r *Ring[T]) Slice() []T {
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}
