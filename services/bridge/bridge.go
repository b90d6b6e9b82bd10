package bridge

import (
	"log/slog"

	"hvac-node/bus"
)

// TopicSet matches every remote property write on the local bus.
var TopicSet = bus.T("property", "+", "set")

// SetTopic is the bus topic carrying writes to one property.
func SetTopic(property string) bus.Topic { return bus.T("property", property, "set") }

// PropertyOf extracts the property from a TopicSet match.
func PropertyOf(t bus.Topic) (string, bool) {
	if len(t) != 3 || t[0] != "property" || t[2] != "set" {
		return "", false
	}
	return t[1], true
}

// Inbound moves property writes from the MQTT link onto the local bus, so
// they are handled on the node loop rather than on the client's goroutine.
type Inbound struct {
	conn *bus.Connection
	log  *slog.Logger
}

func NewInbound(conn *bus.Connection, l *slog.Logger) *Inbound {
	return &Inbound{conn: conn, log: l.With(slog.String("component", "bridge"), slog.String("conn", conn.ID()))}
}

// Forward publishes one write. It never blocks; the payload is the raw string.
func (b *Inbound) Forward(property, value string) {
	b.log.Debug("remote write", slog.String("property", property), slog.String("value", value))
	b.conn.Publish(b.conn.NewMessage(SetTopic(property), value, false))
}
