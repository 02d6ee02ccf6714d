package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

var (
	ErrStringTooLarge      = errors.New("protocol: string too large")
	ErrInvalidUTF8         = errors.New("protocol: string is not valid UTF-8")
	ErrUnexpectedRequest   = errors.New("protocol: request code cannot be encoded")
	ErrInvalidLogbookLevel = errors.New("protocol: invalid logbook level")
)

// IsMalformed reports whether err was produced by the codec itself rather
// than by the underlying stream.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrStringTooLarge) ||
		errors.Is(err, ErrInvalidUTF8) ||
		errors.Is(err, ErrUnexpectedRequest) ||
		errors.Is(err, ErrInvalidLogbookLevel)
}

// Reader is the read side the decoder needs. A channel connection satisfies
// it directly; use StreamReader for a plain io.Reader.
type Reader interface {
	ReadExact(n int) ([]byte, error)
}

// StreamReader adapts an io.Reader to Reader using io.ReadFull.
func StreamReader(r io.Reader) Reader {
	return streamReader{r: r}
}

type streamReader struct {
	r io.Reader
}

func (s streamReader) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Limits constrains decode memory use.
type Limits struct {
	MaxStringBytes uint32
}

// DefaultLimits allows strings up to 256 MiB, enough for large JSON payloads.
func DefaultLimits() Limits {
	return Limits{MaxStringBytes: 256 << 20}
}

// Request is a single bridge-to-peer message.
type Request struct {
	Code      Code
	Operation string // tool namespace for run and check requests
	Payload   []byte // nil is sent as an empty string
	Level     LogbookLevel
}

// RunRequest builds a request that runs operation with payload.
func RunRequest(operation string, payload []byte, level LogbookLevel) Request {
	return Request{
		Code:      CodeStartModuleBinaryParameters,
		Operation: operation,
		Payload:   payload,
		Level:     level,
	}
}

// CheckToolRequest builds a request asking whether a tool namespace exists.
func CheckToolRequest(namespace string) Request {
	return Request{Code: CodeCheckToolExists, Operation: namespace}
}

// TerminationRequest builds the request that asks the peer to exit.
func TerminationRequest() Request {
	return Request{Code: CodeTermination}
}

// Encode renders the request as one contiguous frame.
func (r Request) Encode() ([]byte, error) {
	var e encoder
	e.code(r.Code)

	switch r.Code {
	case CodeStartModuleBinaryParameters:
		if !r.Level.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLogbookLevel, int(r.Level))
		}
		if err := e.text(r.Operation); err != nil {
			return nil, fmt.Errorf("operation: %w", err)
		}
		e.bytes(r.Payload)
		if err := e.text(r.Level.String()); err != nil {
			return nil, err
		}
	case CodeCheckToolExists:
		if err := e.text(r.Operation); err != nil {
			return nil, fmt.Errorf("namespace: %w", err)
		}
	case CodeTermination:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedRequest, r.Code)
	}
	return e.buf.Bytes(), nil
}

// ReadRequest decodes one request. It is the peer side of Request.Encode.
// Codes without a known body are returned with only Code set. An
// unrecognised logbook level name decodes as LogbookDebug.
func ReadRequest(r Reader, limits Limits) (Request, error) {
	code, err := readCode(r)
	if err != nil {
		return Request{}, err
	}

	req := Request{Code: code}
	switch code {
	case CodeStartModuleBinaryParameters:
		if req.Operation, err = readText(r, limits); err != nil {
			return Request{}, fmt.Errorf("operation: %w", err)
		}
		if req.Payload, err = readBytes(r, limits); err != nil {
			return Request{}, fmt.Errorf("payload: %w", err)
		}
		name, err := readText(r, limits)
		if err != nil {
			return Request{}, fmt.Errorf("logbook level: %w", err)
		}
		if req.Level, err = ParseLogbookLevel(name); err != nil {
			req.Level = LogbookDebug
		}
	case CodeCheckToolExists:
		if req.Operation, err = readText(r, limits); err != nil {
			return Request{}, fmt.Errorf("namespace: %w", err)
		}
	}
	return req, nil
}

// ReadSignal decodes one peer signal. Codes the bridge does not expect from
// a peer decode as Unknown without consuming any further bytes.
func ReadSignal(r Reader, limits Limits) (Signal, error) {
	code, err := readCode(r)
	if err != nil {
		return nil, err
	}

	switch code {
	case CodeStart:
		return Start{}, nil
	case CodeRunComplete:
		return RunComplete{}, nil
	case CodeTermination:
		return Termination{}, nil
	case CodeCheckToolExists:
		return ToolExists{}, nil
	case CodeRunCompleteWithValue:
		v, err := readText(r, limits)
		if err != nil {
			return nil, fmt.Errorf("%s value: %w", code, err)
		}
		return RunCompleteWithValue{Value: v}, nil
	case CodeParameterError, CodeRuntimeError, CodeToolNotFound, CodeIncompatibleTool, CodePrintMessage:
		msg, err := readText(r, limits)
		if err != nil {
			return nil, fmt.Errorf("%s message: %w", code, err)
		}
		switch code {
		case CodeParameterError:
			return ParameterError{Message: msg}, nil
		case CodeRuntimeError:
			return RuntimeError{Message: msg}, nil
		case CodeToolNotFound:
			return ToolNotFound{Message: msg}, nil
		case CodeIncompatibleTool:
			return IncompatibleTool{Message: msg}, nil
		default:
			return PrintMessage{Text: msg}, nil
		}
	case CodeProgressReport:
		b, err := r.ReadExact(4)
		if err != nil {
			return nil, err
		}
		return ProgressReport{Fraction: math.Float32frombits(binary.LittleEndian.Uint32(b))}, nil
	default:
		return Unknown{Raw: code}, nil
	}
}

// EncodeSignal renders s as one contiguous frame. It is the peer side of
// ReadSignal.
func EncodeSignal(s Signal) ([]byte, error) {
	var e encoder
	e.code(s.Code())

	var err error
	switch v := s.(type) {
	case RunCompleteWithValue:
		err = e.text(v.Value)
	case ParameterError:
		err = e.text(v.Message)
	case RuntimeError:
		err = e.text(v.Message)
	case ToolNotFound:
		err = e.text(v.Message)
	case IncompatibleTool:
		err = e.text(v.Message)
	case PrintMessage:
		err = e.text(v.Text)
	case ProgressReport:
		e.float(v.Fraction)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Code(), err)
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) code(c Code) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(c))
	e.buf.Write(b[:])
}

func (e *encoder) bytes(p []byte) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(p)))
	e.buf.Write(b[:])
	e.buf.Write(p)
}

func (e *encoder) text(s string) error {
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}
	e.bytes([]byte(s))
	return nil
}

func (e *encoder) float(f float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
	e.buf.Write(b[:])
}

func readCode(r Reader) (Code, error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return Code(int32(binary.LittleEndian.Uint32(b))), nil
}

func readBytes(r Reader, limits Limits) ([]byte, error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(b)
	if n > limits.MaxStringBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrStringTooLarge, n, limits.MaxStringBytes)
	}
	if n == 0 {
		return []byte{}, nil
	}
	return r.ReadExact(int(n))
}

func readText(r Reader, limits Limits) (string, error) {
	b, err := readBytes(r, limits)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}
