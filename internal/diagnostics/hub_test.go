package diagnostics

import (
	"testing"

	"github.com/GriffinCanCode/modhost/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeRequiresOpenView(t *testing.T) {
	h := NewHub()

	_, ok := h.Subscribe(0)
	assert.False(t, ok)

	assert.True(t, h.Toggle())
	sub, ok := h.Subscribe(0)
	require.True(t, ok)
	assert.NotEqual(t, [16]byte{}, [16]byte(sub.ID))
	assert.Equal(t, 1, h.Subscribers())
}

func TestPublishFansOut(t *testing.T) {
	h := NewHub()
	h.Toggle()

	a, _ := h.Subscribe(4)
	b, _ := h.Subscribe(4)

	h.Publish(sandbox.LogEntry{Level: "log", Message: "hello", Origin: "a.js"})

	assert.Equal(t, "hello", (<-a.Entries).Message)
	assert.Equal(t, "a.js", (<-b.Entries).Origin)

	sent, dropped := h.Stats()
	assert.EqualValues(t, 2, sent)
	assert.Zero(t, dropped)
}

func TestSlowSubscriberDrops(t *testing.T) {
	h := NewHub()
	h.Toggle()
	sub, _ := h.Subscribe(1)

	h.Publish(sandbox.LogEntry{Message: "one"})
	h.Publish(sandbox.LogEntry{Message: "two"})

	_, dropped := h.Stats()
	assert.EqualValues(t, 1, dropped)
	assert.Equal(t, "one", (<-sub.Entries).Message)
}

func TestClosingViewEndsSubscriptions(t *testing.T) {
	h := NewHub()
	h.Toggle()
	sub, _ := h.Subscribe(1)

	assert.False(t, h.Toggle())
	_, open := <-sub.Entries
	assert.False(t, open)
	assert.Zero(t, h.Subscribers())

	// publishing to a closed view is a no-op
	h.Publish(sandbox.LogEntry{Message: "lost"})
	sent, dropped := h.Stats()
	assert.Zero(t, sent)
	assert.Zero(t, dropped)

	// closing again is harmless
	sub.Close()
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub()
	h.Toggle()
	sub, _ := h.Subscribe(1)

	sub.Close()
	sub.Close()
	assert.Zero(t, h.Subscribers())
	_, open := <-sub.Entries
	assert.False(t, open)
}
