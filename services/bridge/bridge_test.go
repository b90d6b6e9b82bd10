package bridge

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"hvac-node/bus"
)

func TestForwardReachesSubscriber(t *testing.T) {
	b := bus.NewBus(4)
	node := b.NewConnection("node")
	sub := node.Subscribe(TopicSet)
	defer node.Disconnect()

	in := NewInbound(b.NewConnection("mqtt"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	in.Forward("mode", "Heat22")
	in.Forward("mode", "")

	for _, want := range []string{"Heat22", ""} {
		select {
		case msg := <-sub.Channel():
			prop, ok := PropertyOf(msg.Topic)
			if !ok || prop != "mode" {
				t.Fatalf("topic = %v", msg.Topic)
			}
			if v, _ := msg.Payload.(string); v != want || msg.Retained {
				t.Fatalf("payload = %#v retained=%v, want %q", msg.Payload, msg.Retained, want)
			}
		case <-time.After(time.Second):
			t.Fatal("no message")
		}
	}
}

func TestPropertyOf(t *testing.T) {
	cases := []struct {
		topic bus.Topic
		prop  string
		ok    bool
	}{
		{SetTopic("mode"), "mode", true},
		{bus.T("property", "mode"), "", false},
		{bus.T("config", "mode", "set"), "", false},
		{bus.T("property", "mode", "set", "x"), "", false},
	}
	for _, c := range cases {
		p, ok := PropertyOf(c.topic)
		if p != c.prop || ok != c.ok {
			t.Fatalf("PropertyOf(%v) = %q,%v", c.topic, p, ok)
		}
	}
}
