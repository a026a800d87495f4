package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushUntilFull(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 8, 100} {
		b := New[int](capacity)
		for i := 0; i < capacity; i++ {
			assert.True(t, b.Push(i))
		}
		assert.Equal(t, capacity, b.Size())
		assert.True(t, b.IsFull())

		assert.False(t, b.Push(capacity), "push past capacity must report overwrite")
		assert.Equal(t, capacity, b.Size())

		drained := b.Drain()
		require.Len(t, drained, capacity)
		assert.Equal(t, 1, drained[0], "oldest entry is evicted")
		assert.Equal(t, capacity, drained[capacity-1])
	}
}

func TestOverwriteKeepsNewest(t *testing.T) {
	b := New[string](3)
	b.Push("A")
	b.Push("B")
	b.Push("C")
	assert.False(t, b.Push("D"))

	assert.Equal(t, []string{"B", "C", "D"}, b.Drain())
}

func TestDrainTwice(t *testing.T) {
	b := New[int](4)
	b.Push(1)
	b.Push(2)

	assert.Equal(t, []int{1, 2}, b.Drain())
	assert.True(t, b.IsEmpty())
	assert.Empty(t, b.Drain())
}

func TestWrapAroundOrder(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)
	assert.Equal(t, []int{1, 2}, b.Drain())

	b.Push(3)
	b.Push(4)
	b.Push(5)
	b.Push(6)
	assert.Equal(t, []int{4, 5, 6}, b.Items())
	assert.Equal(t, 3, b.Size(), "Items must not consume")
	assert.Equal(t, []int{4, 5, 6}, b.Drain())
}

func TestClear(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	b.Push(2)
	b.Clear()

	assert.True(t, b.IsEmpty())
	assert.False(t, b.IsFull())
	assert.True(t, b.Push(3))
	assert.Equal(t, []int{3}, b.Drain())
}

func TestClearReleasesSlots(t *testing.T) {
	b := New[*int](3)
	for i := 0; i < 4; i++ {
		v := i
		b.Push(&v)
	}
	b.Clear()

	for i, item := range b.items {
		assert.Nil(t, item, "slot %d still references a cleared item", i)
	}
}

func TestMinimumCapacity(t *testing.T) {
	b := New[int](0)
	assert.Equal(t, 1, b.Cap())
	assert.True(t, b.Push(1))
	assert.False(t, b.Push(2))
	assert.Equal(t, []int{2}, b.Drain())
}

func BenchmarkPush(b *testing.B) {
	buf := New[int](1000)
	for i := 0; i < b.N; i++ {
		buf.Push(i)
	}
}
