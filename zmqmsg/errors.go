package zmqmsg

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrInvalidFrameCount is returned when a multipart message does not
	// consist of two or three frames.
	ErrInvalidFrameCount = errors.New("invalid multipart frame count")

	// ErrUnknownTopic is returned when the topic frame does not name one of
	// the recognized topics.
	ErrUnknownTopic = errors.New("unknown message topic")

	// ErrInvalidCounterFrame is returned when the optional counter frame is
	// not exactly four bytes long.
	ErrInvalidCounterFrame = errors.New("invalid message counter frame")

	// ErrInvalidHashLength is returned when a hashblock or hashtx body is
	// not exactly 32 bytes long.
	ErrInvalidHashLength = errors.New("invalid hash length")

	// ErrInvalidSequenceLength is returned when a sequence body has a length
	// that does not match its label.
	ErrInvalidSequenceLength = errors.New("invalid sequence message length")

	// ErrUnknownSequenceLabel is returned when the label byte of a sequence
	// body is not one of C, D, A or R.
	ErrUnknownSequenceLabel = errors.New("unknown sequence message label")

	// ErrConsensusDecode is returned when the consensus decoder rejects a
	// raw block or transaction body.
	ErrConsensusDecode = errors.New("consensus decode failure")
)

// DecodeErrorKind enumerates the ways a multipart message can fail to decode.
type DecodeErrorKind uint8

const (
	// InvalidFrameCount maps to ErrInvalidFrameCount.
	InvalidFrameCount DecodeErrorKind = iota

	// UnknownTopic maps to ErrUnknownTopic.
	UnknownTopic

	// InvalidCounterFrame maps to ErrInvalidCounterFrame.
	InvalidCounterFrame

	// InvalidHashLength maps to ErrInvalidHashLength.
	InvalidHashLength

	// InvalidSequenceLength maps to ErrInvalidSequenceLength.
	InvalidSequenceLength

	// UnknownSequenceLabel maps to ErrUnknownSequenceLabel.
	UnknownSequenceLabel

	// ConsensusDecodeError maps to ErrConsensusDecode.
	ConsensusDecodeError
)

// sentinel returns the package level error value matching the kind.
func (k DecodeErrorKind) sentinel() error {
	switch k {
	case InvalidFrameCount:
		return ErrInvalidFrameCount
	case UnknownTopic:
		return ErrUnknownTopic
	case InvalidCounterFrame:
		return ErrInvalidCounterFrame
	case InvalidHashLength:
		return ErrInvalidHashLength
	case InvalidSequenceLength:
		return ErrInvalidSequenceLength
	case UnknownSequenceLabel:
		return ErrUnknownSequenceLabel
	default:
		return ErrConsensusDecode
	}
}

// String returns a short name for the kind, suitable as a metric label.
func (k DecodeErrorKind) String() string {
	switch k {
	case InvalidFrameCount:
		return "invalid_frame_count"
	case UnknownTopic:
		return "unknown_topic"
	case InvalidCounterFrame:
		return "invalid_counter_frame"
	case InvalidHashLength:
		return "invalid_hash_length"
	case InvalidSequenceLength:
		return "invalid_sequence_length"
	case UnknownSequenceLabel:
		return "unknown_sequence_label"
	case ConsensusDecodeError:
		return "consensus_decode"
	default:
		return "unknown"
	}
}

// DecodeError describes a multipart message that could not be decoded. It is
// a per-message condition: the source that produced it keeps going.
//
// A DecodeError matches its kind's sentinel error under errors.Is, and, for
// ConsensusDecodeError, also the underlying consensus decoder error.
type DecodeError struct {
	// Kind is the failure class.
	Kind DecodeErrorKind

	// Topic is the message topic when it was recognized, or the raw topic
	// frame for UnknownTopic.
	Topic []byte

	// Length is the offending length: the frame count, the counter frame
	// length, or the body length, depending on Kind.
	Length int

	// Label is the offending label byte for UnknownSequenceLabel.
	Label byte

	// Err is the consensus decoder's error for ConsensusDecodeError.
	Err error
}

// Error returns a human readable description of the failure.
func (e *DecodeError) Error() string {
	switch e.Kind {
	case InvalidFrameCount:
		return fmt.Sprintf("%v: %d (expected 2 or 3)",
			ErrInvalidFrameCount, e.Length)

	case UnknownTopic:
		if utf8.Valid(e.Topic) {
			return fmt.Sprintf("%v '%s'", ErrUnknownTopic, e.Topic)
		}

		return fmt.Sprintf("%v %x (not utf-8)", ErrUnknownTopic,
			e.Topic)

	case InvalidCounterFrame:
		return fmt.Sprintf("%v: length %d (expected 4)",
			ErrInvalidCounterFrame, e.Length)

	case InvalidHashLength:
		return fmt.Sprintf("%v: %d (expected %d) for topic %s",
			ErrInvalidHashLength, e.Length, HashSize, e.Topic)

	case InvalidSequenceLength:
		return fmt.Sprintf("%v: %d", ErrInvalidSequenceLength,
			e.Length)

	case UnknownSequenceLabel:
		return fmt.Sprintf("%v '%c' (0x%02x)", ErrUnknownSequenceLabel,
			printable(e.Label), e.Label)

	default:
		return fmt.Sprintf("%v for topic %s: %v", ErrConsensusDecode,
			e.Topic, e.Err)
	}
}

// Unwrap exposes both the kind's sentinel and the wrapped cause, if any.
func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}

	return []error{e.Kind.sentinel()}
}

// printable replaces non-printable ASCII with '?'.
func printable(b byte) byte {
	if b < 0x20 || b > 0x7e {
		return '?'
	}

	return b
}
