package changefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Source pushes store change events into publish until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, publish func(Event)) error
}

// PGSource listens on a PostgreSQL NOTIFY channel fed by row triggers.
type PGSource struct {
	dsn          string
	channel      string
	logger       *zap.Logger
	pingInterval time.Duration
}

func NewPGSource(dsn, channel string, logger *zap.Logger) *PGSource {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PGSource{
		dsn:          dsn,
		channel:      channel,
		logger:       logger,
		pingInterval: 90 * time.Second,
	}
}

func (s *PGSource) Run(ctx context.Context, publish func(Event)) error {
	listener := pq.NewListener(s.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("change feed listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	defer listener.Close()

	if err := listener.Listen(s.channel); err != nil {
		return fmt.Errorf("listen on %s: %w", s.channel, err)
	}
	s.logger.Info("change feed listening", zap.String("channel", s.channel))

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case n, ok := <-listener.Notify:
			if !ok {
				return fmt.Errorf("change feed listener closed")
			}
			// A nil notification follows a reconnect; anything sent meanwhile was lost.
			if n == nil {
				publish(ResyncEvent())
				continue
			}
			ev, err := ParseEvent([]byte(n.Extra))
			if err != nil {
				s.logger.Warn("dropping malformed change event", zap.String("payload", n.Extra), zap.Error(err))
				continue
			}
			publish(ev)

		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					s.logger.Warn("change feed ping failed", zap.Error(err))
				}
			}()
		}
	}
}
