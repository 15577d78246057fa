package pubsub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew(t *testing.T) {
	ps := New()
	require.NotNil(t, ps)
	assert.NotNil(t, ps.subscribers)
}

func TestSubscribe(t *testing.T) {
	ps := New()

	sub := ps.Subscribe(TopicPanelCreated, "", 10)
	require.NotNil(t, sub)
	assert.Equal(t, TopicPanelCreated, sub.Topic)
	assert.Empty(t, sub.Filter)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, 10, cap(sub.Channel))
	assert.Equal(t, 1, ps.SubscriberCount(TopicPanelCreated))
}

func TestSubscribe_UniqueIDs(t *testing.T) {
	ps := New()
	a := ps.Subscribe(TopicAll, "", 1)
	b := ps.Subscribe(TopicAll, "", 1)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestUnsubscribe(t *testing.T) {
	ps := New()

	first := ps.Subscribe(TopicPanelDeleted, "", 1)
	second := ps.Subscribe(TopicPanelDeleted, "", 1)
	ps.Unsubscribe(first)

	assert.Equal(t, 1, ps.SubscriberCount(TopicPanelDeleted))
	_, open := <-first.Channel
	assert.False(t, open, "channel should be closed")

	// Unsubscribing twice is harmless
	ps.Unsubscribe(first)
	assert.Equal(t, 1, ps.SubscriberCount(TopicPanelDeleted))

	ps.Publish(NewEvent(TopicPanelDeleted, "1", nil))
	assert.Len(t, second.Channel, 1)
}

func TestPublish_TopicRouting(t *testing.T) {
	ps := New()

	created := ps.Subscribe(TopicPanelCreated, "", 10)
	params := ps.Subscribe(TopicParameterUpdated, "", 10)
	all := ps.Subscribe(TopicAll, "", 10)

	delivered := ps.Publish(NewEvent(TopicPanelCreated, "1700000000", []string{"off"}))

	assert.Equal(t, 2, delivered)
	assert.Len(t, created.Channel, 1)
	assert.Len(t, params.Channel, 0)
	assert.Len(t, all.Channel, 1)

	ev := <-created.Channel
	assert.Equal(t, TopicPanelCreated, ev.Topic)
	assert.Equal(t, "1700000000", ev.Key)
	assert.NotEmpty(t, ev.ID)
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Minute)
}

func TestPublish_Filter(t *testing.T) {
	ps := New()

	onlyA := ps.Subscribe(TopicParameterUpdated, "A", 10)
	unfiltered := ps.Subscribe(TopicParameterUpdated, "", 10)

	ps.Publish(NewEvent(TopicParameterUpdated, "B", 5))
	ps.Publish(NewEvent(TopicParameterUpdated, "A", 6))

	assert.Len(t, onlyA.Channel, 1)
	assert.Len(t, unfiltered.Channel, 2)
	assert.Equal(t, 6, (<-onlyA.Channel).Value)
}

func TestPublish_FullBufferDoesNotBlock(t *testing.T) {
	ps := New()
	sub := ps.Subscribe(TopicAll, "", 1)

	done := make(chan struct{})
	go func() {
		ps.Publish(NewEvent(TopicPanelUpdated, "1", nil))
		ps.Publish(NewEvent(TopicPanelUpdated, "2", nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Equal(t, "1", (<-sub.Channel).Key)
}

func TestPublish_ConcurrentWithUnsubscribe(t *testing.T) {
	ps := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		sub := ps.Subscribe(TopicAll, "", 1)
		go func() {
			defer wg.Done()
			ps.Publish(NewEvent(TopicPanelCreated, "1", nil))
		}()
		go func() {
			defer wg.Done()
			ps.Unsubscribe(sub)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, ps.SubscriberCount(TopicAll))
}
