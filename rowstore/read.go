package rowstore

import (
	"fmt"
	"io"

	"github.com/kjk/insertrow/row"
	"github.com/kjk/insertrow/u"
)

// Stats describes the content of a store
type Stats struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Records int    `json:"records"`
	// tags of first and last record, empty if no records
	FirstTag string `json:"first"`
	LastTag  string `json:"last"`
	// end of the last complete record
	ValidSize int64 `json:"valid_size"`
	Truncated bool  `json:"truncated"`
	// ranges left by interrupted writes, followed by other records
	Damaged []row.Span `json:"damaged,omitempty"`
}

func (s *Stats) String() string {
	res := fmt.Sprintf("%s: %d records, %s", s.Path, s.Records, u.FormatSize(s.Size))
	if s.Records > 0 {
		res += fmt.Sprintf(", %s .. %s", s.FirstTag, s.LastTag)
	}
	if len(s.Damaged) > 0 {
		var n int64
		for _, d := range s.Damaged {
			n += d.Size
		}
		res += fmt.Sprintf(", %d damaged ranges (%s) starting at offset %d", len(s.Damaged), u.FormatSize(n), s.Damaged[0].Offset)
	}
	if s.Truncated {
		res += fmt.Sprintf(", truncated record at offset %d", s.ValidSize)
	}
	return res
}

// Layout tells which parts of a store hold complete records
type Layout struct {
	// number of bytes read
	Size int64
	// end of the last complete record
	ValidSize int64
	// stream ends inside a record
	Truncated bool
	// ranges skipped because they are not records
	Damaged []row.Span
}

// Clean returns true if the store is only complete records
func (l *Layout) Clean() bool {
	return !l.Truncated && len(l.Damaged) == 0
}

// Kept returns ranges of complete records, in order, with
// neighboring records merged
func (l *Layout) Kept() []row.Span {
	var res []row.Span
	var off int64
	for _, d := range l.Damaged {
		if d.Offset >= l.ValidSize {
			break
		}
		if d.Offset > off {
			res = append(res, row.Span{Offset: off, Size: d.Offset - off})
		}
		off = d.End()
	}
	if off < l.ValidSize {
		res = append(res, row.Span{Offset: off, Size: l.ValidSize - off})
	}
	return res
}

// ForEach calls fn for every complete record in r, skipping
// damaged ranges. Returns where records are
func ForEach(r io.Reader, fn func(rec *row.Record) error) (*Layout, error) {
	s := row.NewScanner(r)
	res := &Layout{}
	for s.Scan() {
		rec := s.Record()
		res.ValidSize = rec.Offset + rec.Size
		if err := fn(rec); err != nil {
			return res, err
		}
	}
	res.Size = s.Offset()
	res.Truncated = s.Truncated()
	res.Damaged = s.Damaged()
	return res, s.Err()
}

// Records reads all complete records from a store. The store
// can be compressed with gzip, brotli or zstd (based on extension)
func Records(path string) ([]*row.Record, error) {
	f, err := u.OpenFileMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var res []*row.Record
	_, err = ForEach(f, func(rec *row.Record) error {
		res = append(res, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading '%s': %w", path, err)
	}
	return res, nil
}

// Stat scans the store and returns its stats
func Stat(path string) (*Stats, error) {
	f, err := u.OpenFileMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res := &Stats{
		Path: path,
	}
	layout, err := ForEach(f, func(rec *row.Record) error {
		if res.Records == 0 {
			res.FirstTag = rec.Tag
		}
		res.LastTag = rec.Tag
		res.Records++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading '%s': %w", path, err)
	}
	res.ValidSize = layout.ValidSize
	res.Truncated = layout.Truncated
	res.Damaged = layout.Damaged
	// for compressed snapshots we only know the uncompressed size
	res.Size = layout.Size
	if !u.IsCompressedPath(path) {
		res.Size = u.FileSize(path)
	}
	return res, nil
}
