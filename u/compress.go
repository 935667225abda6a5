package u

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// implement io.ReadCloser over os.File wrapped with io.Reader.
// closes both the decompressor (if it needs closing) and the file
type readerWrappedFile struct {
	f     *os.File
	r     io.Reader
	close func()
}

func (rc *readerWrappedFile) Close() error {
	if rc.close != nil {
		rc.close()
	}
	return rc.f.Close()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

func compressionExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gz", ".br", ".zst", ".zstd":
		return ext
	}
	return ""
}

// IsCompressedPath returns true if path has extension of a compression
// format we know
func IsCompressedPath(path string) bool {
	return compressionExt(path) != ""
}

// OpenFileMaybeCompressed opens a file that might be compressed with gzip,
// brotli or zstd, based on file extension
func OpenFileMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	res := &readerWrappedFile{f: f}
	switch compressionExt(path) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		res.r = zr
	case ".br":
		res.r = brotli.NewReader(f)
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, err
		}
		res.r = zr
		res.close = zr.Close
	default:
		return f, nil
	}
	return res, nil
}

func zstdNewWriter(dst io.Writer) (*zstd.Encoder, error) {
	// zstd.SpeedBestCompression is much slower and not much better
	return zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
}

func newCompressor(dstPath string, w io.Writer) (io.WriteCloser, error) {
	switch compressionExt(dstPath) {
	case ".gz":
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case ".br":
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	case ".zst", ".zstd":
		return zstdNewWriter(w)
	}
	return nil, fmt.Errorf("unknown compression for '%s', must be .gz, .br or .zst", dstPath)
}

// CompressFile compresses srcPath into dstPath. Compression format is
// picked based on dstPath extension (.gz, .br, .zst)
// Returns size of compressed file
func CompressFile(dstPath string, srcPath string) (int64, error) {
	fSrc, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer fSrc.Close()
	fDst, err := os.Create(dstPath)
	if err != nil {
		return 0, err
	}
	w, err := newCompressor(dstPath, fDst)
	if err != nil {
		fDst.Close()
		os.Remove(dstPath)
		return 0, err
	}
	_, err = io.Copy(w, fSrc)
	err2 := w.Close()
	err3 := fDst.Close()
	if err = errors.Join(err, err2, err3); err != nil {
		os.Remove(dstPath)
		return 0, err
	}
	return FileSize(dstPath), nil
}
