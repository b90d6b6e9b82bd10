package homie

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"hvac-node/errcode"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// recorder keeps the last payload seen per topic.
type recorder struct {
	mu   sync.Mutex
	last map[string]string
}

func (r *recorder) handle(_ *mqttbroker.Client, _ packets.Subscription, pk packets.Packet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[pk.TopicName] = string(pk.Payload)
}

func (r *recorder) get(topic string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.last[topic]
	return v, ok
}

func (r *recorder) waitFor(t *testing.T, topic, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := r.get(topic); ok && v == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	v, _ := r.get(topic)
	t.Fatalf("%s = %q, want %q", topic, v, want)
}

// startBroker runs an in-process broker and records everything published.
func startBroker(t *testing.T) (*mqttbroker.Server, string, *recorder) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := mqttbroker.New(&mqttbroker.Options{InlineClient: true, Logger: quiet()})
	if err := srv.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatal(err)
	}
	if err := srv.AddListener(listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})); err != nil {
		t.Fatal(err)
	}
	if err := srv.Serve(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	rec := &recorder{last: map[string]string{}}
	if err := srv.Subscribe("#", 1, rec.handle); err != nil {
		t.Fatal(err)
	}
	return srv, "tcp://" + addr, rec
}

func testNodes() []Node {
	return []Node{
		{ID: "HVAC", Name: "HVAC", Type: "switch", Properties: []Property{
			{ID: "mode", Name: "Mode", DataType: String, Settable: true},
		}},
		{ID: "temperature", Name: "Temperature", Type: "temperature", Properties: []Property{
			{ID: "degrees", Name: "Degrees", DataType: Float, Unit: "°C"},
		}},
	}
}

func newTestDevice(t *testing.T, broker string) *Device {
	t.Helper()
	d := NewDevice(Config{
		Broker:          broker,
		ClientID:        "test-" + t.Name(),
		DeviceID:        "hvac-test",
		Name:            "HVAC",
		FirmwareName:    "D1Mini-HVAC",
		FirmwareVersion: "0.17.2.4",
		StatsInterval:   time.Minute,
	}, quiet())
	for _, n := range testNodes() {
		if err := d.Advertise(n); err != nil {
			t.Fatalf("Advertise(%s): %v", n.ID, err)
		}
	}
	return d
}

func connect(t *testing.T, d *Device) {
	t.Helper()
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(d.Disconnect)
	deadline := time.Now().Add(5 * time.Second)
	for !d.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("device never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAnnounce(t *testing.T) {
	_, broker, rec := startBroker(t)
	d := newTestDevice(t, broker)
	connect(t, d)

	rec.waitFor(t, "homie/hvac-test/$state", StateReady)
	want := map[string]string{
		"homie/hvac-test/$homie":                    Version,
		"homie/hvac-test/$name":                     "HVAC",
		"homie/hvac-test/$nodes":                    "HVAC,temperature",
		"homie/hvac-test/$fw/name":                  "D1Mini-HVAC",
		"homie/hvac-test/$fw/version":               "0.17.2.4",
		"homie/hvac-test/$stats/interval":           "60",
		"homie/hvac-test/HVAC/$properties":          "mode",
		"homie/hvac-test/HVAC/mode/$settable":       "true",
		"homie/hvac-test/HVAC/mode/$datatype":       String,
		"homie/hvac-test/temperature/degrees/$unit": "°C",
	}
	for topic, v := range want {
		if got, _ := rec.get(topic); got != v {
			t.Errorf("%s = %q, want %q", topic, got, v)
		}
	}
	if _, ok := rec.get("homie/hvac-test/temperature/degrees/$settable"); ok {
		t.Error("read-only property advertised as settable")
	}
}

func TestSetAndPublish(t *testing.T) {
	srv, broker, rec := startBroker(t)
	d := newTestDevice(t, broker)

	type write struct{ prop, value string }
	got := make(chan write, 1)
	d.OnSet(func(p, v string) { got <- write{p, v} })
	connect(t, d)

	if err := srv.Publish("homie/hvac-test/HVAC/mode/set", []byte("Heat22"), false, 0); err != nil {
		t.Fatal(err)
	}
	select {
	case w := <-got:
		if w != (write{"mode", "Heat22"}) {
			t.Fatalf("set = %+v", w)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("set handler not called")
	}

	if err := d.Publish("degrees", "21.00"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	rec.waitFor(t, "homie/hvac-test/temperature/degrees", "21.00")

	if err := d.PublishRaw("cmnd/blaster/IRsend", []byte("OFF"), false); err != nil {
		t.Fatalf("PublishRaw: %v", err)
	}
	rec.waitFor(t, "cmnd/blaster/IRsend", "OFF")

	if err := d.PublishStats(90 * time.Second); err != nil {
		t.Fatalf("PublishStats: %v", err)
	}
	rec.waitFor(t, "homie/hvac-test/$stats/uptime", "90")
}

func TestDisconnectAnnouncesState(t *testing.T) {
	_, broker, rec := startBroker(t)
	d := newTestDevice(t, broker)
	connect(t, d)

	d.Disconnect()
	rec.waitFor(t, "homie/hvac-test/$state", StateDisconnected)
	if d.Ready() {
		t.Fatal("still ready after disconnect")
	}
}

// silentBroker accepts TCP connections and never answers CONNECT.
func silentBroker(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	var accepted atomic.Int32
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			go func() {
				_, _ = io.Copy(io.Discard, c)
				_ = c.Close()
			}()
		}
	}()
	return "tcp://" + ln.Addr().String(), &accepted
}

func TestDisconnectStopsRetries(t *testing.T) {
	broker, accepted := silentBroker(t)
	d := NewDevice(Config{
		Broker:         broker,
		ClientID:       "test-" + t.Name(),
		DeviceID:       "hvac-test",
		ConnectTimeout: 100 * time.Millisecond,
		RetryInterval:  50 * time.Millisecond,
	}, quiet())

	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for accepted.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never dialled the broker")
		}
		time.Sleep(10 * time.Millisecond)
	}

	d.Disconnect()
	time.Sleep(200 * time.Millisecond)
	before := accepted.Load()
	time.Sleep(500 * time.Millisecond)
	if after := accepted.Load(); after != before {
		t.Fatalf("client kept retrying after Disconnect: %d -> %d dials", before, after)
	}
	if d.Ready() {
		t.Fatal("ready without a session")
	}
}

func TestPublishErrors(t *testing.T) {
	d := newTestDevice(t, "tcp://127.0.0.1:1")
	if err := d.Publish("nope", "1"); !errors.Is(err, errcode.UnknownProperty) {
		t.Fatalf("unknown property err = %v", err)
	}
	if err := d.Publish("degrees", "1"); !errors.Is(err, errcode.NotConnected) {
		t.Fatalf("disconnected err = %v", err)
	}
}

func TestAdvertiseValidation(t *testing.T) {
	d := newTestDevice(t, "tcp://127.0.0.1:1")
	dup := Node{ID: "other", Properties: []Property{{ID: "mode", DataType: String}}}
	if err := d.Advertise(dup); !errors.Is(err, errcode.InvalidConfig) {
		t.Fatalf("duplicate property err = %v", err)
	}
	if err := d.Advertise(Node{ID: "a/b"}); !errors.Is(err, errcode.InvalidConfig) {
		t.Fatalf("bad node id err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Connect(ctx)
	if err := d.Advertise(Node{ID: "late"}); !errors.Is(err, errcode.Unsupported) {
		t.Fatalf("late advertise err = %v", err)
	}
}
