package heartbeat

import (
	"context"
	"testing"
	"time"

	"firmatadht-go/bus"
)

func TestBeatsFollowConfiguredInterval(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("hb")
	conn.Publish(conn.NewMessage(topicConfigHeartbeat, []byte(`{"interval":0.02}`), true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	(&Service{State: func() string { return "idle" }}).Start(ctx, conn)

	sub := conn.Subscribe(TopicHeartbeat)
	var last uint32
	for i := 0; i < 3; i++ {
		select {
		case m := <-sub.Channel():
			beat := m.Payload.(Beat)
			if beat.Seq <= last || beat.State != "idle" {
				t.Fatalf("beat=%+v after seq %d", beat, last)
			}
			last = beat.Seq
		case <-time.After(500 * time.Millisecond):
			t.Fatal("no heartbeat at configured interval")
		}
	}
}
