// Package tcp exchanges one request/reply pair over a raw TCP connection.
package tcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/harunnryd/kokoroctl/pkg/logging"
	"github.com/harunnryd/kokoroctl/pkg/transports"
)

type Config struct {
	Host             string
	Port             int
	ConnectTimeout   time.Duration
	IOTimeout        time.Duration
	Framing          transports.Framing
	MaxResponseBytes int
	Logger           *slog.Logger
}

type Exchanger struct {
	cfg    Config
	dialer net.Dialer
	logger *slog.Logger
}

func New(cfg Config) *Exchanger {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Framing == "" {
		cfg.Framing = transports.FramingJSON
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = transports.DefaultMaxResponseBytes
	}
	return &Exchanger{
		cfg:    cfg,
		dialer: net.Dialer{Timeout: cfg.ConnectTimeout},
		logger: logging.NewComponentLogger(cfg.Logger, "tcp_exchanger"),
	}
}

func (e *Exchanger) Name() string { return "tcp" }

// Addr returns the host:port target.
func (e *Exchanger) Addr() string {
	return net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
}

func (e *Exchanger) Framing() transports.Framing { return e.cfg.Framing }

// Exchange connects, writes payload, reads one reply and closes. The
// connection is released on every path; there is no retry.
func (e *Exchanger) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	addr := e.Addr()

	conn, err := e.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, transports.ConnectError(addr, err)
	}
	defer e.release(conn)
	e.logger.Debug("connected", "addr", addr, "local", conn.LocalAddr().String())

	if e.cfg.IOTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(e.cfg.IOTimeout)); err != nil {
			return nil, transports.IOError(ctx, "set deadline", err)
		}
	}
	// Cancellation unblocks pending I/O by expiring the deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	n, err := writeMessage(conn, e.cfg.Framing, payload)
	if err != nil {
		return nil, transports.IOError(ctx, "write request", err)
	}
	e.logger.Debug("request sent", "bytes", n, "framing", string(e.cfg.Framing))

	if e.cfg.Framing == transports.FramingEOF {
		if err := closeWrite(conn); err != nil {
			return nil, transports.IOError(ctx, "half-close", err)
		}
	}

	resp, err := readMessage(conn, e.cfg.Framing, e.cfg.MaxResponseBytes)
	if err != nil {
		if errors.Is(err, transports.ErrEmptyResponse) || errors.Is(err, transports.ErrResponseTooLarge) {
			return nil, err
		}
		return nil, transports.IOError(ctx, "read reply", err)
	}
	e.logger.Debug("reply received", "bytes", len(resp))
	return resp, nil
}

func (e *Exchanger) release(conn net.Conn) {
	_ = closeWrite(conn)
	if err := conn.Close(); err != nil {
		e.logger.Debug("close failed", "error", err)
	}
}

func closeWrite(conn net.Conn) error {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

var _ transports.Exchanger = (*Exchanger)(nil)
