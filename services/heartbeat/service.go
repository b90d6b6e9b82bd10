package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

// StatsPublisher receives the node uptime on every beat.
type StatsPublisher interface {
	PublishStats(uptime time.Duration) error
}

type Service struct {
	Interval time.Duration
	Pub      StatsPublisher
	Log      *slog.Logger

	// now is swapped in tests.
	now func() time.Time
}

func (s *Service) serviceLoop(ctx context.Context, start time.Time) {
	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	// loop until context is cancelled, publishing uptime on every tick
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("heartbeat service stopping")
			return
		case <-tick.C:
			s.beat(start)
		}
	}
}

func (s *Service) beat(start time.Time) {
	up := s.now().Sub(start)
	if err := s.Pub.PublishStats(up); err != nil {
		s.Log.Debug("uptime not published", slog.Duration("uptime", up), slog.Any("error", err))
		return
	}
	s.Log.Debug("heartbeat", slog.Duration("uptime", up))
}

// Start the heartbeat service. A zero interval disables it.
func (s *Service) Start(ctx context.Context) error {
	if s.Log == nil {
		s.Log = slog.Default()
	}
	s.Log = s.Log.With(slog.String("component", "heartbeat"))
	if s.now == nil {
		s.now = time.Now
	}
	if s.Interval <= 0 {
		s.Log.Info("heartbeat disabled")
		return nil
	}
	start := s.now()
	go s.serviceLoop(ctx, start)
	return nil
}
