package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/kokoroctl/pkg/transports"
)

// Exchanger is an in-memory exchanger for tests. It records every payload and
// answers with Reply or Err.
type Exchanger struct {
	mu    sync.Mutex
	reply []byte
	err   error
	sent  [][]byte
}

func New(reply []byte, err error) *Exchanger {
	return &Exchanger{reply: reply, err: err}
}

func (e *Exchanger) Name() string { return "mock" }

func (e *Exchanger) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, append([]byte(nil), payload...))
	if ctx != nil && ctx.Err() != nil {
		return nil, transports.IOError(ctx, "exchange", ctx.Err())
	}
	if e.err != nil {
		return nil, e.err
	}
	return append([]byte(nil), e.reply...), nil
}

// Sent returns the payloads passed to Exchange, in order.
func (e *Exchanger) Sent() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.sent))
	copy(out, e.sent)
	return out
}

var _ transports.Exchanger = (*Exchanger)(nil)
