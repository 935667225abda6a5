package insert

import (
	"errors"

	"github.com/kjk/insertrow/row"
	"github.com/kjk/insertrow/rowstore"
)

// Kind is the terminal result of an insert
type Kind int

const (
	Success Kind = iota
	// store can't be opened or stat'ed
	StoreUnavailable
	// store reached max size, the body was not read
	CapacityExceeded
	// escaped body exceeds max record length, nothing was written
	RecordTooLarge
	// body has a null byte, nothing was written
	InvalidByte
	// only part of the record was written, the store ends with a truncated record
	ShortWrite
	// reading the body, writing or closing the store failed
	IOError
)

var kindNames = []string{
	"Success",
	"StoreUnavailable",
	"CapacityExceeded",
	"RecordTooLarge",
	"InvalidByte",
	"ShortWrite",
	"IOError",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Fatal returns true for outcomes that must not get a response.
// The process (or the connection in a server) is aborted instead
func (k Kind) Fatal() bool {
	switch k {
	case InvalidByte, ShortWrite, IOError:
		return true
	}
	return false
}

// Outcome describes what happened to one insert
type Outcome struct {
	Kind Kind
	// nil for Success
	Err error
	// size of appended record, 0 if nothing was appended
	Size int64
}

// Classify maps errors returned by row and rowstore to Kind
func Classify(err error) Kind {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, rowstore.ErrStoreUnavailable):
		return StoreUnavailable
	case errors.Is(err, rowstore.ErrCapacityExceeded):
		return CapacityExceeded
	case errors.Is(err, row.ErrRecordTooLarge):
		return RecordTooLarge
	case errors.Is(err, row.ErrInvalidByte):
		return InvalidByte
	case errors.Is(err, rowstore.ErrShortWrite):
		return ShortWrite
	}
	return IOError
}

func newOutcome(err error) Outcome {
	return Outcome{
		Kind: Classify(err),
		Err:  err,
	}
}
