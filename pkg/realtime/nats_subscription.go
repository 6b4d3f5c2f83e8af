package realtime

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSubscription delivers document events over a NATS subject. Core
// NATS (not JetStream) is deliberate: the engine's conflict policy works
// from timestamps on each event, so replaying a missed window buys
// nothing a cache refresh doesn't already cover.
type NATSSubscription struct {
	nc *nats.Conn
}

func NewNATSSubscription(url string) (*NATSSubscription, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(5*time.Second),
		nats.NoReconnect(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSubscription{nc: nc}, nil
}

// NewNATSFactory returns a Factory the realtime service can call on
// every (re)connect attempt. Reconnection policy lives in the service,
// not in the NATS client, hence NoReconnect above.
func NewNATSFactory(url string) Factory {
	return func() (ISubscription, error) {
		return NewNATSSubscription(url)
	}
}

func (s *NATSSubscription) Subscribe(subject string, h Handler) (Unsubscribe, error) {
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return func() {
		_ = sub.Unsubscribe()
	}, nil
}

func (s *NATSSubscription) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}
