package orchestration

import (
	"context"
	"sync"

	"github.com/koscakluka/memoir-voice/core/realtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// link is one open connection and the worker receiving from it.
type link struct {
	provider realtime.Provider
	conn     realtime.Connection

	inbound chan realtime.Fragment
	// done is closed once the worker stopped and err is final. err is nil
	// when the peer closed the connection cleanly.
	done chan struct{}
	err  error

	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// openLink connects and starts receiving. The worker lives until the link
// is closed, the peer goes away or lifetime ends.
func openLink(ctx, lifetime context.Context, transport realtime.Transport, handshake realtime.Handshake) (*link, error) {
	conn, err := transport.Connect(ctx, handshake)
	if err != nil {
		return nil, err
	}

	workerCtx, cancel := context.WithCancel(lifetime)
	l := &link{
		provider: transport.Provider(),
		conn:     conn,
		inbound:  make(chan realtime.Fragment, inboundBuffer),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	go l.receive(workerCtx)
	return l, nil
}

func (l *link) receive(ctx context.Context) {
	defer close(l.done)

	received := metric.WithAttributes(attribute.String("provider", l.provider.String()))
	run := panicSafeNamedWorker("receive", func(ctx context.Context) error {
		for fragment, err := range l.conn.Receive() {
			if err != nil {
				return err
			}
			fragmentsReceived.Add(ctx, 1, received)

			select {
			case l.inbound <- fragment:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	l.err = run(ctx)
}

// ended reports whether the worker stopped, and why.
func (l *link) ended() (bool, error) {
	select {
	case <-l.done:
		return true, l.err
	default:
		return false, nil
	}
}

func (l *link) close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}
