package row

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kjk/insertrow/u"
)

const (
	Quote     = '"'
	Backslash = '\\'

	// DefaultMaxLen is the default limit of escaped content in a record
	DefaultMaxLen = 5000

	// Overhead is the tag plus opening quote. It doesn't count against
	// the content budget
	Overhead = TagLen + 1
)

var (
	ErrInvalidByte    = errors.New("null byte in record")
	ErrRecordTooLarge = errors.New("record too large")
	ErrFinished       = errors.New("record already finished")
	ErrMalformed      = errors.New("malformed record")
)

// Encoder builds one encoded record: <tag>"<escaped body>"\n
// Bytes are checked against the limit before they are committed
// so the buffer never grows past Overhead + maxLen + 2
type Encoder struct {
	buf      []byte
	maxLen   int
	finished bool
}

// NewEncoder starts a record stamped with now.
// maxLen <= 0 means DefaultMaxLen
func NewEncoder(maxLen int, now time.Time) *Encoder {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	buf := make([]byte, 0, Overhead+maxLen+2)
	buf = append(buf, Tag(now)...)
	buf = append(buf, Quote)
	return &Encoder{
		buf:    buf,
		maxLen: maxLen,
	}
}

func needsEscape(c byte) bool {
	return c == Quote || c == Backslash
}

// AppendByte adds one byte of content, escaping quote and backslash
func (e *Encoder) AppendByte(c byte) error {
	if e.finished {
		return ErrFinished
	}
	if c == 0 {
		return ErrInvalidByte
	}
	delta := 1
	if needsEscape(c) {
		delta = 2
	}
	if len(e.buf)-Overhead+delta >= e.maxLen {
		return ErrRecordTooLarge
	}
	if delta == 2 {
		e.buf = append(e.buf, Backslash)
	}
	e.buf = append(e.buf, c)
	return nil
}

// Write implements io.Writer. On error n is the number of bytes of p
// that were committed
func (e *Encoder) Write(p []byte) (int, error) {
	for i, c := range p {
		if err := e.AppendByte(c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// ReadFrom consumes r until io.EOF or the first rejected byte.
// Nothing past the rejected byte is read from r's buffer
func (e *Encoder) ReadFrom(r io.Reader) (int64, error) {
	br := bufio.NewReader(r)
	var n int64
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reading record: %w", err)
		}
		if err = e.AppendByte(c); err != nil {
			return n, err
		}
		n++
	}
}

// Len returns the number of escaped content bytes
func (e *Encoder) Len() int {
	return len(e.buf) - Overhead
}

// Finish closes the record and returns it. The encoder can't be used after
func (e *Encoder) Finish() []byte {
	u.PanicIf(e.finished, "Encoder.Finish() called twice")
	e.finished = true
	e.buf = append(e.buf, Quote, '\n')
	return e.buf
}

// Encode encodes body as a single record
func Encode(maxLen int, now time.Time, body []byte) ([]byte, error) {
	e := NewEncoder(maxLen, now)
	if _, err := e.Write(body); err != nil {
		return nil, err
	}
	return e.Finish(), nil
}

// Escape appends escaped src to dst
func Escape(dst, src []byte) []byte {
	for _, c := range src {
		if needsEscape(c) {
			dst = append(dst, Backslash)
		}
		dst = append(dst, c)
	}
	return dst
}

// Unescape reverses Escape: every \c becomes c.
// An unescaped quote or a dangling backslash means the body wasn't produced by Escape
func Unescape(body []byte) ([]byte, error) {
	res := make([]byte, 0, len(body))
	n := len(body)
	for i := 0; i < n; i++ {
		c := body[i]
		if c == Quote {
			return nil, fmt.Errorf("%w: unescaped quote at %d", ErrMalformed, i)
		}
		if c == Backslash {
			i++
			if i == n {
				return nil, fmt.Errorf("%w: dangling backslash", ErrMalformed)
			}
			c = body[i]
		}
		res = append(res, c)
	}
	return res, nil
}
