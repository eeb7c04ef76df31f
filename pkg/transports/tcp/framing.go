package tcp

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/harunnryd/kokoroctl/pkg/transports"
)

const lengthPrefixSize = 4

// writeMessage writes the whole payload. net.Conn.Write only returns early on error.
func writeMessage(w io.Writer, framing transports.Framing, payload []byte) (int, error) {
	if framing == transports.FramingLength {
		msg := make([]byte, lengthPrefixSize+len(payload))
		binary.BigEndian.PutUint32(msg, uint32(len(payload)))
		copy(msg[lengthPrefixSize:], payload)
		payload = msg
	}
	return w.Write(payload)
}

// readMessage reads one reply according to framing. Malformed payloads are
// returned unchanged for the interpreter to reject; only I/O failures,
// oversize replies and empty replies are errors here.
func readMessage(r io.Reader, framing transports.Framing, max int) ([]byte, error) {
	switch framing {
	case transports.FramingSingle:
		return readSingle(r)
	case transports.FramingEOF:
		return readToEOF(r, max)
	case transports.FramingLength:
		return readLengthPrefixed(r, max)
	default:
		return readJSONValue(r, max)
	}
}

func readSingle(r io.Reader) ([]byte, error) {
	buf := make([]byte, transports.LegacyReadSize)
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, transports.ErrEmptyResponse
	}
	return nil, err
}

func readToEOF(r io.Reader, max int) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if err != nil {
		return nil, err
	}
	if len(b) > max {
		return nil, transports.ErrResponseTooLarge
	}
	if len(b) == 0 {
		return nil, transports.ErrEmptyResponse
	}
	return b, nil
}

func readLengthPrefixed(r io.Reader, max int) ([]byte, error) {
	var hdr [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, transports.ErrEmptyResponse
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, transports.ErrEmptyResponse
	}
	if uint64(n) > uint64(max) {
		return nil, transports.ErrResponseTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read %d byte body: %w", n, err)
	}
	return body, nil
}

func readJSONValue(r io.Reader, max int) ([]byte, error) {
	var seen bytes.Buffer
	dec := json.NewDecoder(io.TeeReader(io.LimitReader(r, int64(max)+1), &seen))
	var raw json.RawMessage
	err := dec.Decode(&raw)
	switch {
	case err == nil:
		return raw, nil
	case seen.Len() > max:
		return nil, transports.ErrResponseTooLarge
	case errors.Is(err, io.EOF):
		return nil, transports.ErrEmptyResponse
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		// Malformed or truncated: hand back what arrived.
		return seen.Bytes(), nil
	}
	return nil, err
}
