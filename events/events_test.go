package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_FanOutInOrder(t *testing.T) {
	var topic Topic[string]
	var got []string

	topic.Subscribe(func(s string) { got = append(got, "a:"+s) })
	topic.Subscribe(func(s string) { got = append(got, "b:"+s) })

	topic.Publish("CONNECTED")

	assert.Equal(t, []string{"a:CONNECTED", "b:CONNECTED"}, got)
}

func TestTopic_Unsubscribe(t *testing.T) {
	var topic Topic[int]
	calls := 0

	token := topic.Subscribe(func(int) { calls++ })
	require.Equal(t, 1, topic.Len())

	assert.True(t, topic.Unsubscribe(token))
	assert.False(t, topic.Unsubscribe(token), "second unsubscribe should report unknown token")

	topic.Publish(1)
	assert.Zero(t, calls)
	assert.Zero(t, topic.Len())
}

func TestTopic_UnsubscribeDuringPublish(t *testing.T) {
	var topic Topic[int]
	var token Token
	first, second := 0, 0

	token = topic.Subscribe(func(int) {
		first++
		topic.Unsubscribe(token)
	})
	topic.Subscribe(func(int) { second++ })

	topic.Publish(1)
	topic.Publish(2)

	assert.Equal(t, 1, first, "self-unsubscribing handler runs once")
	assert.Equal(t, 2, second, "other subscribers keep receiving")
}

func TestTopic_TokensAreUnique(t *testing.T) {
	var topic Topic[int]
	a := topic.Subscribe(func(int) {})
	b := topic.Subscribe(func(int) {})
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a.String())
}

func TestGroup_Close(t *testing.T) {
	var states Topic[string]
	var counters Topic[int]
	var g Group

	hits := 0
	Add(&g, &states, func(string) { hits++ })
	Add(&g, &counters, func(int) { hits++ })

	states.Publish("x")
	counters.Publish(1)
	require.Equal(t, 2, hits)

	g.Close()
	states.Publish("y")
	counters.Publish(2)

	assert.Equal(t, 2, hits)
	assert.Zero(t, states.Len())
	assert.Zero(t, counters.Len())
}
