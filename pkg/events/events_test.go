package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Publish(&Event{Type: EventBackupCreated, Message: "backup stored"})

	select {
	case e := <-sub:
		assert.Equal(t, EventBackupCreated, e.Type)
		assert.Equal(t, "backup stored", e.Message)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestBroadcastSkipsFullSubscriber(t *testing.T) {
	b := NewBroker()
	full := make(Subscriber) // no buffer, nothing draining it
	b.subscribers[full] = true
	live := b.Subscribe()

	b.broadcast(&Event{Type: EventBulkCompleted})

	select {
	case <-live:
	default:
		t.Fatal("live subscriber should have received the event")
	}
	select {
	case <-full:
		t.Fatal("full subscriber should have been skipped")
	default:
	}
}
