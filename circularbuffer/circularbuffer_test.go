package circularbuffer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gregoryjjb/ringseq/circularbuffer"
)

func TestNewRejectsBadSize(t *testing.T) {
	_, err := circularbuffer.New[int](0)
	assert.Error(t, err)
}

func TestCircularBuffer(t *testing.T) {
	cb, err := circularbuffer.New[string](3)
	require.NoError(t, err)

	assert.Empty(t, cb.Snapshot())
	assert.Equal(t, 0, cb.Len())
	assert.Equal(t, 3, cb.Cap())

	for _, s := range []string{"a", "b", "c"} {
		_, evicted := cb.Push(s)
		assert.False(t, evicted)
	}
	assert.Equal(t, []string{"a", "b", "c"}, cb.Snapshot())

	old, evicted := cb.Push("d")
	assert.True(t, evicted)
	assert.Equal(t, "a", old)

	cb.Push("e")
	assert.Equal(t, []string{"c", "d", "e"}, cb.Snapshot())
	assert.Equal(t, 3, cb.Len())

	var seen []string
	cb.Each(func(s string) { seen = append(seen, s) })
	assert.Equal(t, []string{"c", "d", "e"}, seen)
}
