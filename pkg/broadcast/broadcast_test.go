package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	c := New()
	ch1, unsub1 := c.Subscribe()
	defer unsub1()
	ch2, unsub2 := c.Subscribe()
	defer unsub2()

	c.Publish(Message{ProjectId: "p", OriginReplicaId: "r1"})

	for _, ch := range []<-chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			require.Equal(t, "p", msg.ProjectId)
		case <-time.After(time.Second):
			t.Fatal("expected delivery")
		}
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	c := New()
	ch, unsub := c.Subscribe()
	unsub()

	c.Publish(Message{ProjectId: "p"})

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}
