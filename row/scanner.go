package row

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"
)

// Record is a decoded record read back from a store
type Record struct {
	Tag  string
	Time time.Time
	// unescaped content
	Body []byte
	// position of the record in the store and its encoded size
	Offset int64
	Size   int64
}

// Span is a byte range of a store
type Span struct {
	Offset int64 `json:"offset"`
	Size   int64 `json:"size"`
}

func (s Span) End() int64 {
	return s.Offset + s.Size
}

type parseResult int

const (
	parsedRecord parseResult = iota
	// no bytes left
	parsedEOF
	// stream ended inside a record
	parsedTruncated
	parsedMalformed
	// read error, in Scanner.err
	parsedError
)

// Scanner reads records from a store.
// Body can contain raw newlines (only quote and backslash are escaped)
// so we can't split on lines. A record ends at the first unescaped quote.
//
// An interrupted write leaves a partial record which the next append
// follows directly. Bytes that don't parse as a record are skipped up to
// the next `<14 digit tag>"` and reported by Damaged()
type Scanner struct {
	r *bufio.Reader
	// bytes given back after a failed parse, read before r
	pend []byte
	off  int64
	// bytes consumed by the record being parsed
	cur []byte

	rec       *Record
	err       error
	done      bool
	truncated bool
	damaged   []Span
	raw       []byte
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		r: bufio.NewReader(r),
	}
}

func (s *Scanner) readByte() (byte, error) {
	var c byte
	if len(s.pend) > 0 {
		c = s.pend[0]
		s.pend = s.pend[1:]
	} else {
		var err error
		c, err = s.r.ReadByte()
		if err != nil {
			return 0, err
		}
	}
	s.off++
	s.cur = append(s.cur, c)
	return c, nil
}

// unreadTail gives back all but the first byte of a record that failed
// to parse, so that they are searched for the start of the next record
func (s *Scanner) unreadTail() {
	tail := s.cur[1:]
	pend := make([]byte, 0, len(tail)+len(s.pend))
	pend = append(pend, tail...)
	s.pend = append(pend, s.pend...)
	s.off -= int64(len(tail))
	s.cur = s.cur[:0]
}

func (s *Scanner) peek(n int) []byte {
	if len(s.pend) >= n {
		return s.pend[:n]
	}
	d, _ := s.r.Peek(n - len(s.pend))
	if len(s.pend) == 0 {
		return d
	}
	res := append([]byte(nil), s.pend...)
	return append(res, d...)
}

// atRecordStart returns true if the next bytes are a valid tag and a quote
func (s *Scanner) atRecordStart() bool {
	d := s.peek(TagLen + 1)
	if len(d) < TagLen+1 || d[TagLen] != Quote {
		return false
	}
	_, err := ParseTag(string(d[:TagLen]))
	return err == nil
}

func (s *Scanner) readFailed(err error, atStart bool) parseResult {
	if err == io.EOF {
		if atStart {
			return parsedEOF
		}
		return parsedTruncated
	}
	s.err = err
	return parsedError
}

func (s *Scanner) parse() parseResult {
	s.cur = s.cur[:0]
	start := s.off

	var tag [TagLen]byte
	for i := range tag {
		c, err := s.readByte()
		if err != nil {
			return s.readFailed(err, i == 0)
		}
		tag[i] = c
	}
	tagStr := string(tag[:])
	t, err := ParseTag(tagStr)
	if err != nil {
		return parsedMalformed
	}

	c, err := s.readByte()
	if err != nil {
		return s.readFailed(err, false)
	}
	if c != Quote {
		return parsedMalformed
	}

	s.raw = s.raw[:0]
	for {
		c, err = s.readByte()
		if err != nil {
			return s.readFailed(err, false)
		}
		if c == Quote {
			break
		}
		if c == Backslash {
			c, err = s.readByte()
			if err != nil {
				return s.readFailed(err, false)
			}
		}
		s.raw = append(s.raw, c)
	}

	c, err = s.readByte()
	if err != nil {
		return s.readFailed(err, false)
	}
	if c != '\n' {
		return parsedMalformed
	}

	s.rec = &Record{
		Tag:    tagStr,
		Time:   t,
		Body:   append([]byte(nil), s.raw...),
		Offset: start,
		Size:   s.off - start,
	}
	return parsedRecord
}

// Scan advances to the next record. Returns false at the end of
// the stream, after a truncated record or on a read error
func (s *Scanner) Scan() bool {
	if s.err != nil || s.done {
		return false
	}
	s.rec = nil
	damageStart := int64(-1)
	endDamage := func(end int64) {
		if damageStart >= 0 && end > damageStart {
			s.damaged = append(s.damaged, Span{Offset: damageStart, Size: end - damageStart})
		}
	}
	for {
		if damageStart >= 0 && !s.atRecordStart() {
			_, err := s.readByte()
			s.cur = s.cur[:0]
			if err == io.EOF {
				endDamage(s.off)
				s.done = true
				return false
			}
			if err != nil {
				s.err = err
				return false
			}
			continue
		}

		start := s.off
		switch s.parse() {
		case parsedRecord:
			endDamage(start)
			return true
		case parsedEOF:
			endDamage(start)
			s.done = true
			return false
		case parsedTruncated:
			endDamage(start)
			s.truncated = true
			s.done = true
			return false
		case parsedMalformed:
			if damageStart < 0 {
				damageStart = start
			}
			s.unreadTail()
		default:
			return false
		}
	}
}

// Record returns the record read by the last successful Scan
func (s *Scanner) Record() *Record {
	return s.rec
}

func (s *Scanner) Err() error {
	return s.err
}

// Truncated returns true if the stream ended inside a record
func (s *Scanner) Truncated() bool {
	return s.truncated
}

// Damaged returns byte ranges skipped so far because they
// are not records. Ranges are ordered and don't overlap
func (s *Scanner) Damaged() []Span {
	return s.damaged
}

// Offset returns the number of bytes consumed so far. At the end it's
// the size of the stream
func (s *Scanner) Offset() int64 {
	return s.off
}

// ParseRecord decodes exactly one encoded record
func ParseRecord(d []byte) (*Record, error) {
	s := NewScanner(bytes.NewReader(d))
	ok := s.Scan()
	if s.Err() != nil {
		return nil, s.Err()
	}
	if !ok || s.Record().Offset != 0 {
		return nil, fmt.Errorf("%w: not a complete record", ErrMalformed)
	}
	rec := s.Record()
	if rec.Size != int64(len(d)) {
		return nil, fmt.Errorf("%w: %d bytes after the record", ErrMalformed, int64(len(d))-rec.Size)
	}
	return rec, nil
}
