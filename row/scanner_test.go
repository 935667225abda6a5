package row

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag(t *testing.T) {
	assert.Equal(t, "20210909044900", Tag(frozen))
	early := time.Date(987, time.January, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "09870102030405", Tag(early))

	tag := NowTag(nil)
	assert.Regexp(t, regexp.MustCompile(`^\d{14}$`), tag)
}

func TestTagOrdersAsInteger(t *testing.T) {
	t1 := time.Date(2021, time.December, 31, 23, 59, 59, 0, time.Local)
	t2 := t1.Add(time.Second)
	n1, err := strconv.ParseUint(Tag(t1), 10, 64)
	require.NoError(t, err)
	n2, err := strconv.ParseUint(Tag(t2), 10, 64)
	require.NoError(t, err)
	assert.Less(t, n1, n2)
}

func TestParseTag(t *testing.T) {
	got, err := ParseTag("20210909044900")
	require.NoError(t, err)
	assert.True(t, got.Equal(frozen))

	_, err = ParseTag("2021090904490")
	assert.Error(t, err)
	_, err = ParseTag("2021090904490x")
	assert.Error(t, err)
	_, err = ParseTag("20211309044900")
	assert.Error(t, err)
}

func TestScanMultiple(t *testing.T) {
	bodies := [][]byte{
		[]byte("hello"),
		[]byte("multi\nline \"quoted\"\n"),
		nil,
		[]byte(`\\`),
	}
	var store bytes.Buffer
	for _, b := range bodies {
		rec, err := Encode(0, frozen, b)
		require.NoError(t, err)
		store.Write(rec)
	}

	s := NewScanner(&store)
	var got []*Record
	for s.Scan() {
		got = append(got, s.Record())
	}
	require.NoError(t, s.Err())
	assert.False(t, s.Truncated())
	require.Len(t, got, len(bodies))
	var off int64
	for i, rec := range got {
		assert.Equal(t, string(bodies[i]), string(rec.Body))
		assert.Equal(t, off, rec.Offset)
		off += rec.Size
	}
}

func TestScanTruncated(t *testing.T) {
	full, err := Encode(0, frozen, []byte("first"))
	require.NoError(t, err)
	second, err := Encode(0, frozen, []byte(`sec"ond`))
	require.NoError(t, err)

	// every prefix of the second record is a truncated store
	for i := 1; i < len(second); i++ {
		d := append(append([]byte{}, full...), second[:i]...)
		s := NewScanner(bytes.NewReader(d))
		require.True(t, s.Scan(), "prefix %d", i)
		assert.Equal(t, "first", string(s.Record().Body))
		assert.False(t, s.Scan(), "prefix %d", i)
		assert.NoError(t, s.Err(), "prefix %d", i)
		assert.True(t, s.Truncated(), "prefix %d", i)
	}
}

func TestScanMalformed(t *testing.T) {
	tests := []string{
		"2021090904490x\"a\"\n",
		"20210909044900a\"\n",
		"20210909044900\"a\"x",
		"this is not a store at all\n",
	}
	for _, tc := range tests {
		s := NewScanner(strings.NewReader(tc))
		assert.False(t, s.Scan(), "%q", tc)
		assert.NoError(t, s.Err(), "%q", tc)
		assert.False(t, s.Truncated(), "%q", tc)
		assert.Equal(t, []Span{{Offset: 0, Size: int64(len(tc))}}, s.Damaged(), "%q", tc)
	}
}

func encodeAll(t *testing.T, bodies ...string) [][]byte {
	var res [][]byte
	for _, b := range bodies {
		rec, err := Encode(0, frozen, []byte(b))
		require.NoError(t, err)
		res = append(res, rec)
	}
	return res
}

func scanAll(t *testing.T, d []byte) ([]*Record, *Scanner) {
	s := NewScanner(bytes.NewReader(d))
	var res []*Record
	for s.Scan() {
		res = append(res, s.Record())
	}
	require.NoError(t, s.Err())
	return res, s
}

// an interrupted write followed by a successful append
func TestScanSkipsPartialRecord(t *testing.T) {
	recs := encodeAll(t, "one", "two", "three")
	one, two, three := recs[0], recs[1], recs[2]
	for i := 1; i < len(two); i++ {
		var d []byte
		d = append(d, one...)
		d = append(d, two[:i]...)
		d = append(d, three...)

		got, s := scanAll(t, d)
		require.Len(t, got, 2, "prefix %d", i)
		assert.Equal(t, "one", string(got[0].Body))
		assert.Equal(t, "three", string(got[1].Body))
		assert.Equal(t, int64(len(one)+i), got[1].Offset, "prefix %d", i)
		assert.Equal(t, []Span{{Offset: int64(len(one)), Size: int64(i)}}, s.Damaged(), "prefix %d", i)
		assert.False(t, s.Truncated())
		assert.Equal(t, int64(len(d)), s.Offset())
	}
}

func TestScanDamageThenTruncated(t *testing.T) {
	recs := encodeAll(t, "one", "two", "three")
	var d []byte
	d = append(d, "garbage"...)
	d = append(d, recs[0]...)
	d = append(d, recs[1][:5]...)
	d = append(d, recs[2][:len(recs[2])-2]...)

	got, s := scanAll(t, d)
	require.Len(t, got, 1)
	assert.Equal(t, "one", string(got[0].Body))
	exp := []Span{
		{Offset: 0, Size: 7},
		{Offset: int64(7 + len(recs[0])), Size: 5},
	}
	assert.Equal(t, exp, s.Damaged())
	assert.True(t, s.Truncated())
}

func TestScanDamageAtEnd(t *testing.T) {
	recs := encodeAll(t, "one")
	d := append(append([]byte{}, recs[0]...), "not a record\n"...)
	got, s := scanAll(t, d)
	require.Len(t, got, 1)
	assert.Equal(t, []Span{{Offset: int64(len(recs[0])), Size: 13}}, s.Damaged())
	assert.False(t, s.Truncated())
}

func TestParseRecordTrailingData(t *testing.T) {
	rec, err := Encode(0, frozen, []byte("a"))
	require.NoError(t, err)
	_, err = ParseRecord(append(rec, rec...))
	assert.True(t, errors.Is(err, ErrMalformed))
	_, err = ParseRecord(rec[:len(rec)-1])
	assert.True(t, errors.Is(err, ErrMalformed))
}
