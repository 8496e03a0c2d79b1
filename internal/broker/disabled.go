package broker

import "context"

// DisabledBroker is the degraded no-broker mode: every operation reports
// ErrBrokerUnavailable. The rest of the system keeps working; only
// real-time fan-out is lost. Used when the configured backend is
// unreachable at startup, and as a substitute in tests.
type DisabledBroker struct{}

// NewDisabledBroker returns a broker with no connection.
func NewDisabledBroker() *DisabledBroker {
	return &DisabledBroker{}
}

func (*DisabledBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return ErrBrokerUnavailable
}

func (*DisabledBroker) NewSubscriber(ctx context.Context) (Subscriber, error) {
	return nil, ErrBrokerUnavailable
}

func (*DisabledBroker) Close() error {
	return nil
}
