package node

import (
	"context"
	"log/slog"
	"time"

	"hvac-node/bus"
	"hvac-node/errcode"
	"hvac-node/services/bridge"
	"hvac-node/services/command"
	"hvac-node/services/measure"
	"hvac-node/types"
	"hvac-node/x/timex"
)

// Runtime is the node loop. Measurement ticks and mode writes are handled on
// the goroutine running Run, so neither needs locking.
type Runtime struct {
	Scheduler  *measure.Scheduler
	Dispatcher *command.Dispatcher
	Telemetry  measure.Telemetry
	Clock      timex.Clock
	Conn       *bus.Connection
	Tick       time.Duration
	Log        *slog.Logger

	sets *bus.Subscription
}

// Listen subscribes to property writes. Writes forwarded before Listen are
// not seen; call it before the MQTT session starts.
func (r *Runtime) Listen() {
	if r.sets == nil {
		r.sets = r.Conn.SubscribeQueued(bridge.TopicSet)
	}
}

// Run ticks the scheduler and serves property writes until ctx is done.
func (r *Runtime) Run(ctx context.Context) error {
	r.Listen()
	defer func() {
		r.Conn.Unsubscribe(r.sets)
		r.sets = nil
	}()

	tick := time.NewTicker(r.Tick)
	defer tick.Stop()

	// The first tick is immediate so a reading appears right after startup.
	r.Scheduler.OnTick(r.Clock.Millis())

	for {
		select {
		case <-ctx.Done():
			r.Log.Info("node loop stopping")
			return nil
		case <-tick.C:
			r.Scheduler.OnTick(r.Clock.Millis())
		case msg, ok := <-r.sets.Channel():
			if !ok {
				return errcode.Wrap(errcode.NotConnected, "node.run", nil)
			}
			r.handleSet(msg)
			if n := r.sets.Backlog(); n > 0 {
				r.Log.Debug("property writes queued", slog.Int("backlog", n))
			}
		}
	}
}

func (r *Runtime) handleSet(msg *bus.Message) {
	prop, _ := bridge.PropertyOf(msg.Topic)
	value, _ := msg.Payload.(string)

	if prop != types.PropMode {
		r.Log.Warn("write to unknown property dropped",
			slog.String("property", prop),
			slog.String("code", string(errcode.UnknownProperty)))
		return
	}
	if !r.Dispatcher.OnModeWrite(value) {
		return
	}
	// Accepted values are stored by echoing them on the property.
	if err := r.Telemetry.Publish(types.PropMode, value); err != nil {
		r.Log.Warn("mode echo failed", slog.String("code", string(errcode.Of(err))), slog.Any("error", err))
	}
}
