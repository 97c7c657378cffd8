package analytics

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord  = errors.New("malformed record")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrEmptyPartition   = errors.New("empty partition")
	ErrJoinMismatch     = errors.New("no overlapping dates")
	ErrInvalidRequest   = errors.New("invalid request")
)

// RecordError describes one input row that could not be parsed.
type RecordError struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
	Err   error  `json:"-"`
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// ReasonCode is the machine readable cause of a fund exclusion.
type ReasonCode string

const (
	ReasonMalformedRecord  ReasonCode = "MALFORMED_RECORD"
	ReasonInsufficientData ReasonCode = "INSUFFICIENT_DATA"
	ReasonDivisionByZero   ReasonCode = "DIVISION_BY_ZERO"
	ReasonEmptyPartition   ReasonCode = "EMPTY_PARTITION"
	ReasonJoinMismatch     ReasonCode = "JOIN_MISMATCH"
	ReasonDuplicateFund    ReasonCode = "DUPLICATE_FUND"
	ReasonFetchFailed      ReasonCode = "FETCH_FAILED"
	ReasonUnknown          ReasonCode = "UNKNOWN"
)

func ReasonFor(err error) ReasonCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedRecord):
		return ReasonMalformedRecord
	case errors.Is(err, ErrInsufficientData):
		return ReasonInsufficientData
	case errors.Is(err, ErrDivisionByZero):
		return ReasonDivisionByZero
	case errors.Is(err, ErrEmptyPartition):
		return ReasonEmptyPartition
	case errors.Is(err, ErrJoinMismatch):
		return ReasonJoinMismatch
	default:
		return ReasonUnknown
	}
}
