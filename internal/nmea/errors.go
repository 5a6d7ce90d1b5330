package nmea

import (
	"errors"
	"fmt"
)

var (
	ErrNoStart  = errors.New("nmea: missing '$'")
	ErrShort    = errors.New("nmea: too few fields")
	ErrChecksum = errors.New("nmea: checksum mismatch")
	ErrField    = errors.New("nmea: bad field")
)

// ParseError describes a sentence that was dropped. It is never fatal to
// the reader; callers count it as an invalid sample.
type ParseError struct {
	Type   string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Err.Error()
	if e.Type != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Type)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(typ string, err error, detail string) *ParseError {
	return &ParseError{Type: typ, Err: err, Detail: detail}
}
