package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kjk/insertrow/config"
	"github.com/kjk/insertrow/rowstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frozen = time.Date(2021, time.September, 9, 4, 49, 0, 0, time.Local)

func TestRemotePath(t *testing.T) {
	got := RemotePath("apps/guestbook", "/var/db/guestbook.txt", frozen, "br")
	assert.Equal(t, "apps/guestbook/2021/09-09/guestbook-20210909044900.txt.br", got)

	got = RemotePath("", "db", frozen, "zst")
	assert.Equal(t, "2021/09-09/db-20210909044900.txt.zst", got)
}

func TestSnapshot(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "db.txt")
	d := []byte("20210909044900\"hello\"\n20210909044901\"world\"\n")
	require.NoError(t, os.WriteFile(storePath, d, 0644))

	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0755))
	for _, compression := range []string{"br", "zst", "gz"} {
		path, err := Snapshot(storePath, outDir, frozen, compression)
		require.NoError(t, err, compression)
		recs, err := rowstore.Records(path)
		require.NoError(t, err, compression)
		require.Len(t, recs, 2, compression)
		assert.Equal(t, "world", string(recs[1].Body))
	}

	_, err := Snapshot(filepath.Join(dir, "missing.txt"), outDir, frozen, "br")
	assert.Error(t, err)
}

func TestNewNeedsConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
	_, err = New(context.Background(), &config.Archive{Bucket: "b"})
	assert.Error(t, err)
}

// s3 server that serves a single object
func newObjectServer(t *testing.T, bucket string, remotePath string, body []byte) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+bucket+"/"+remotePath {
			http.NotFound(w, r)
			return
		}
		h := w.Header()
		h.Set("ETag", `"3858f62230ac3c915f300c664312c63f"`)
		h.Set("Last-Modified", frozen.UTC().Format(http.TimeFormat))
		h.Set("Content-Type", "application/octet-stream")
		h.Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	body := []byte("20210909044900\"hello\"\n")
	remotePath := "apps/guestbook/2021/09-09/db-20210909044900.txt"
	srv := newObjectServer(t, "bucket", remotePath, body)

	mc, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
		Secure: false,
	})
	require.NoError(t, err)
	c := &Client{
		Client: mc,
		config: &config.Archive{Bucket: "bucket"},
	}

	dst := filepath.Join(t.TempDir(), "snapshots", "db.txt")
	require.NoError(t, c.Download(context.Background(), remotePath, dst))
	recs, err := rowstore.Records(dst)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "hello", string(recs[0].Body))

	err = c.Download(context.Background(), "missing.txt", filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)
}
