package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type step struct {
	name string
	n    int
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory[step]()

	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.False(t, s.InProgress(1))

	s.Set(1, step{name: "qty"})
	got, ok := s.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "qty", got.name)
	assert.True(t, s.InProgress(1))
	assert.False(t, s.InProgress(2))

	s.Set(1, step{name: "time", n: 3})
	got, _ = s.Get(1)
	assert.Equal(t, step{name: "time", n: 3}, got)

	s.Clear(1)
	assert.False(t, s.InProgress(1))
	s.Clear(1)
}
