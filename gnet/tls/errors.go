package tls

import (
	"context"
	"io"
	"net"
	"os"

	"github.com/pkg/errors"

	"github.com/mel2oo/tlsprobe/mempool"
)

var (
	// The stream ended before a complete handshake message arrived. A
	// zero-length stream is never a valid probe outcome.
	ErrUnexpectedEOF = errors.New("stream ended before a complete handshake message")

	// A length field, record or extension violated its structural constraints.
	ErrMalformed = errors.New("malformed TLS message")

	// The first handshake message was something other than a ClientHello.
	ErrUnexpectedMessageType = errors.New("unexpected handshake message type")

	// Not enough bytes for the current parse step. Never escapes this package;
	// it means "read more and try again".
	errIncomplete = errors.New("incomplete TLS message")

	errParserDone = errors.New("ClientHello parser already finished")
)

// Wraps a field-level decode error as ErrMalformed, keeping the field name.
func malformed(field string, cause error) error {
	if cause == nil {
		return errors.Wrap(ErrMalformed, field)
	}
	return errors.Wrapf(ErrMalformed, "%s: %v", field, cause)
}

type FailureKind int

const (
	// Read failed for a reason other than the stream ending.
	FailureIO FailureKind = iota

	// The peer did not send a complete handshake message before the read
	// deadline.
	FailureTimeout

	FailureEndOfStream
	FailureMalformed
	FailureUnexpectedMessage

	// The probe could not be run at all, e.g. the buffer pool was exhausted.
	FailureInternal
)

func (k FailureKind) String() string {
	switch k {
	case FailureIO:
		return "io"
	case FailureTimeout:
		return "timeout"
	case FailureEndOfStream:
		return "end_of_stream"
	case FailureMalformed:
		return "malformed"
	case FailureUnexpectedMessage:
		return "unexpected_message"
	case FailureInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// User-facing description of the failure.
func (k FailureKind) Message() string {
	switch k {
	case FailureTimeout:
		return "Timed out waiting for ClientHello"
	case FailureEndOfStream:
		return "Connection closed before ClientHello was received"
	case FailureMalformed:
		return "Corrupt TLS message"
	case FailureUnexpectedMessage:
		return "Expected ClientHello"
	case FailureInternal:
		return "Probe could not be run"
	default:
		return "Error reading from connection"
	}
}

// Maps an error returned by this package or the probe around it to the kind of
// failure it represents. Errors from the stream itself that are not timeouts
// classify as FailureIO.
func Classify(err error) FailureKind {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrUnexpectedMessageType):
		return FailureUnexpectedMessage
	case errors.Is(err, ErrMalformed):
		return FailureMalformed
	case errors.Is(err, ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return FailureEndOfStream
	case errors.Is(err, mempool.ErrEmptyPool):
		return FailureInternal
	case errors.Is(err, os.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return FailureTimeout
	default:
		return FailureIO
	}
}

var (
	errTrailingBytes = errors.New("trailing bytes")
	errOddLength     = errors.New("odd length for a list of uint16")
)
