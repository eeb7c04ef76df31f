package transports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harunnryd/kokoroctl/pkg/errorsx"
)

// Exchanger performs one request/response round trip with the TTS server.
// Implementations own the connection for the duration of a single call and
// release it on every exit path.
type Exchanger interface {
	Name() string
	Exchange(ctx context.Context, payload []byte) ([]byte, error)
}

// Framing selects how the reply message is delimited on a stream transport.
type Framing string

const (
	// FramingJSON reads until one complete JSON value has arrived.
	FramingJSON Framing = "json"
	// FramingSingle performs one bounded read of LegacyReadSize bytes.
	FramingSingle Framing = "single"
	// FramingEOF half-closes after sending and reads until the peer closes.
	FramingEOF Framing = "eof"
	// FramingLength prefixes both messages with a 4-byte big-endian length.
	FramingLength Framing = "length"
)

const (
	LegacyReadSize          = 4096
	DefaultMaxResponseBytes = 1 << 20
)

// ParseFraming maps a config value to a Framing; empty selects FramingJSON.
func ParseFraming(v string) (Framing, error) {
	switch f := Framing(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return FramingJSON, nil
	case FramingJSON, FramingSingle, FramingEOF, FramingLength:
		return f, nil
	default:
		return "", fmt.Errorf("unknown framing %q (want json, single, eof or length)", v)
	}
}

var (
	// ErrEmptyResponse is returned when the server closes without sending a payload.
	ErrEmptyResponse error = errorsx.ReasonedError{
		Err:    errors.New("server closed the connection without a reply"),
		Reason: errorsx.ReasonEmptyResponse,
	}
	// ErrResponseTooLarge is returned when a reply exceeds the configured bound.
	ErrResponseTooLarge error = errorsx.ReasonedError{
		Err:    errors.New("reply exceeds the maximum response size"),
		Reason: errorsx.ReasonTransport,
	}
)

// ConnectError marks a failure to establish the connection.
func ConnectError(target string, err error) error {
	return errorsx.Wrap(fmt.Errorf("connect %s: %w", target, err), errorsx.ReasonConnectionFailed)
}

// IOError marks a failure while writing the request or reading the reply.
// A cancelled ctx is reported as the cause since it forces the I/O deadline.
func IOError(ctx context.Context, op string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		err = fmt.Errorf("%w: %v", cerr, err)
	}
	return errorsx.Wrap(fmt.Errorf("%s: %w", op, err), errorsx.ReasonTransport)
}
