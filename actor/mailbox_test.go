package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	n int
}

type incMsg struct {
	by    int
	reply chan<- int
}

func (m incMsg) process(c *counter) {
	c.n += m.by
	m.reply <- c.n
}

func TestMailboxSerializesMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &counter{}
	mb := NewMailbox[*counter](16)
	go Run(ctx, c, mb)

	for i := 0; i < 100; i++ {
		_, err := call(ctx, mb, func(reply chan<- int) message[*counter] {
			return incMsg{by: 1, reply: reply}
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 100, c.n)
}

func TestCallReturnsContextErrorOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mb := NewMailbox[*counter](0)

	_, err := call(ctx, mb, func(reply chan<- int) message[*counter] {
		return incMsg{by: 1, reply: reply}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCallTimesOutWithoutRunningOwner(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := &counter{}
	mb := NewMailbox[*counter](1)

	_, err := call(ctx, mb, func(reply chan<- int) message[*counter] {
		return incMsg{by: 1, reply: reply}
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_ = c
}
