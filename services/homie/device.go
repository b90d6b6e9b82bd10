package homie

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"hvac-node/errcode"
)

const qos = 1

type binding struct {
	node string
	prop Property
}

// Device is safe for concurrent use once connected. Nodes must be advertised
// before Connect.
type Device struct {
	cfg    Config
	log    *slog.Logger
	client mqtt.Client

	mu    sync.RWMutex
	nodes []Node
	props map[string]binding
	onSet SetFunc

	started atomic.Bool
	ready   atomic.Bool
}

func NewDevice(cfg Config, l *slog.Logger) *Device {
	cfg.defaults()
	d := &Device{
		cfg:   cfg,
		log:   l.With(slog.String("component", "homie"), slog.String("device", cfg.DeviceID)),
		props: map[string]binding{},
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetWill(d.topic("$state"), StateLost, qos, true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetConnectRetryInterval(cfg.RetryInterval)
	opts.SetMaxReconnectInterval(15 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(d.onConnect)
	opts.SetConnectionLostHandler(d.onConnectionLost)
	opts.SetReconnectingHandler(d.onReconnecting)

	d.client = mqtt.NewClient(opts)
	return d
}

// Advertise registers a node. Property IDs are unique across the device.
func (d *Device) Advertise(n Node) error {
	if d.started.Load() {
		return &errcode.E{C: errcode.Unsupported, Op: "homie.advertise", Msg: "device already connected"}
	}
	if !validID(n.ID) {
		return &errcode.E{C: errcode.InvalidConfig, Op: "homie.advertise", Msg: "bad node id " + strconv.Quote(n.ID)}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range n.Properties {
		if !validID(p.ID) {
			return &errcode.E{C: errcode.InvalidConfig, Op: "homie.advertise", Msg: "bad property id " + strconv.Quote(p.ID)}
		}
		if b, dup := d.props[p.ID]; dup {
			return &errcode.E{C: errcode.InvalidConfig, Op: "homie.advertise", Msg: p.ID + " already on node " + b.node}
		}
	}
	for _, p := range n.Properties {
		d.props[p.ID] = binding{node: n.ID, prop: p}
	}
	d.nodes = append(d.nodes, n)
	return nil
}

// OnSet installs the handler for writes to settable properties.
func (d *Device) OnSet(fn SetFunc) {
	d.mu.Lock()
	d.onSet = fn
	d.mu.Unlock()
}

// Connect starts the client. It waits up to the connect timeout for the first
// session; if the broker is not reachable by then the client keeps retrying
// in the background and Connect returns nil.
func (d *Device) Connect(ctx context.Context) error {
	d.started.Store(true)
	d.log.Info("connecting to MQTT broker", slog.String("broker", d.cfg.Broker))

	token := d.client.Connect()
	t := time.NewTimer(d.cfg.ConnectTimeout)
	defer t.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return errcode.Wrap(errcode.NotConnected, "homie.connect", err)
		}
		return nil
	case <-t.C:
		d.log.Warn("broker not reachable yet, retrying in background")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the device has announced itself on the current session.
func (d *Device) Ready() bool { return d.ready.Load() }

// Publish implements measure.Telemetry: the value is published retained on
// the node that owns property.
func (d *Device) Publish(property, value string) error {
	d.mu.RLock()
	b, ok := d.props[property]
	d.mu.RUnlock()
	if !ok {
		return &errcode.E{C: errcode.UnknownProperty, Op: "homie.publish", Msg: property}
	}
	return d.publish(d.topic(b.node, property), value, true)
}

// PublishRaw publishes to an absolute topic outside the device tree.
func (d *Device) PublishRaw(topic string, payload []byte, retained bool) error {
	return d.publish(topic, payload, retained)
}

// PublishStats publishes $stats/uptime in whole seconds.
func (d *Device) PublishStats(uptime time.Duration) error {
	return d.publish(d.topic("$stats", "uptime"), strconv.FormatInt(int64(uptime/time.Second), 10), true)
}

// Disconnect announces a clean shutdown and closes the session.
// Without a session only the background connect retries are stopped.
func (d *Device) Disconnect() {
	if d.client.IsConnectionOpen() {
		if err := d.publish(d.topic("$state"), StateDisconnected, true); err != nil {
			d.log.Warn("failed to publish state", slog.Any("error", err))
		}
	}
	d.ready.Store(false)
	d.client.Disconnect(250)
	d.log.Info("disconnected from MQTT broker")
}

func (d *Device) publish(topic string, payload any, retained bool) error {
	if !d.client.IsConnectionOpen() {
		return errcode.Wrap(errcode.NotConnected, "homie.publish", nil)
	}
	token := d.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(d.cfg.PublishTimeout) {
		return &errcode.E{C: errcode.Timeout, Op: "homie.publish", Msg: topic}
	}
	if err := token.Error(); err != nil {
		return errcode.Wrap(errcode.Error, "homie.publish", err)
	}
	return nil
}

func (d *Device) topic(parts ...string) string {
	return d.cfg.BaseTopic + "/" + d.cfg.DeviceID + "/" + strings.Join(parts, "/")
}

// onConnect runs on every (re)connection: announce, subscribe, go ready.
func (d *Device) onConnect(c mqtt.Client) {
	d.log.Info("connected to MQTT broker, announcing device")

	d.mu.RLock()
	nodes := append([]Node(nil), d.nodes...)
	d.mu.RUnlock()

	for _, a := range d.attributes(nodes) {
		if err := d.publish(d.topic(a[0]), a[1], true); err != nil {
			d.log.Error("failed to announce", slog.String("attribute", a[0]), slog.Any("error", err))
			return
		}
	}

	for _, n := range nodes {
		for _, p := range n.Properties {
			if !p.Settable {
				continue
			}
			topic := d.topic(n.ID, p.ID, "set")
			token := c.Subscribe(topic, qos, d.setHandler(p.ID))
			token.Wait()
			if err := token.Error(); err != nil {
				d.log.Error("failed to subscribe", slog.String("topic", topic), slog.Any("error", err))
				continue
			}
			d.log.Debug("subscribed", slog.String("topic", topic))
		}
	}

	if err := d.publish(d.topic("$state"), StateReady, true); err != nil {
		d.log.Error("failed to publish state", slog.Any("error", err))
		return
	}
	d.ready.Store(true)
	d.log.Info("device ready")
}

// attributes returns the announcement as ordered (topic suffix, value) pairs.
func (d *Device) attributes(nodes []Node) [][2]string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	out := [][2]string{
		{"$state", StateInit},
		{"$homie", Version},
		{"$name", d.cfg.Name},
		{"$implementation", Implementation},
		{"$fw/name", d.cfg.FirmwareName},
		{"$fw/version", d.cfg.FirmwareVersion},
		{"$nodes", strings.Join(ids, ",")},
		{"$stats", "uptime"},
		{"$stats/interval", strconv.FormatInt(int64(d.cfg.StatsInterval/time.Second), 10)},
	}
	for _, n := range nodes {
		out = append(out,
			[2]string{n.ID + "/$name", n.Name},
			[2]string{n.ID + "/$type", n.Type},
			[2]string{n.ID + "/$properties", n.propertyIDs()},
		)
		for _, p := range n.Properties {
			base := n.ID + "/" + p.ID + "/"
			out = append(out,
				[2]string{base + "$name", p.Name},
				[2]string{base + "$datatype", p.DataType},
			)
			if p.Unit != "" {
				out = append(out, [2]string{base + "$unit", p.Unit})
			}
			if p.Format != "" {
				out = append(out, [2]string{base + "$format", p.Format})
			}
			if p.Settable {
				out = append(out, [2]string{base + "$settable", "true"})
			}
		}
	}
	return out
}

func (d *Device) setHandler(property string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		d.mu.RLock()
		fn := d.onSet
		d.mu.RUnlock()
		value := string(msg.Payload())
		d.log.Debug("set received", slog.String("property", property), slog.String("value", value))
		if fn == nil {
			return
		}
		fn(property, value)
	}
}

func (d *Device) onConnectionLost(_ mqtt.Client, err error) {
	d.ready.Store(false)
	d.log.Warn("connection to MQTT broker lost", slog.Any("error", err))
}

func (d *Device) onReconnecting(_ mqtt.Client, opts *mqtt.ClientOptions) {
	d.log.Info("reconnecting to MQTT broker", slog.String("broker", opts.Servers[0].String()))
}
