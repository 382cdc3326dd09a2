package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowBurstThenRefill(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestDisabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("a"))
	}
}

func TestSweep(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(5, 5)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(11 * time.Minute)
	l.Allow("new")
	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.m, 1)
}
