package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjk/insertrow/config"
	"github.com/kjk/insertrow/insert"
	"github.com/kjk/insertrow/row"
	"github.com/kjk/insertrow/rowstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frozen = time.Date(2021, time.September, 9, 4, 49, 0, 0, time.Local)

func writeStore(t *testing.T, bodies ...string) string {
	path := filepath.Join(t.TempDir(), "db.txt")
	var d []byte
	for _, b := range bodies {
		rec, err := row.Encode(0, frozen, []byte(b))
		require.NoError(t, err)
		d = append(d, rec...)
	}
	require.NoError(t, os.WriteFile(path, d, 0644))
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	rootCmd, err := newRootCmd()
	require.NoError(t, err)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return out.String(), err
}

func TestDumpRecords(t *testing.T) {
	d := []byte("20210909044900\"a \\\"b\\\"\"\n20210909044901\"multi\nline\"\n20210909")
	var buf bytes.Buffer
	layout, err := dumpRecords(&buf, bytes.NewReader(d), false)
	require.NoError(t, err)
	assert.True(t, layout.Truncated)
	s := buf.String()
	assert.Contains(t, s, "--- 20210909044900 2021-09-09 04:49:00\na \"b\"\n")
	assert.Contains(t, s, "multi\nline\n")

	buf.Reset()
	_, err = dumpRecords(&buf, bytes.NewReader(d), true)
	require.NoError(t, err)
	dec := json.NewDecoder(&buf)
	var recs []jsonRecord
	for dec.More() {
		var rec jsonRecord
		require.NoError(t, dec.Decode(&rec))
		recs = append(recs, rec)
	}
	require.Len(t, recs, 2)
	assert.Equal(t, `a "b"`, recs[0].Body)
	assert.Equal(t, "20210909044901", recs[1].Tag)
}

func TestStatsCmd(t *testing.T) {
	path := writeStore(t, "one", "two")
	out, err := runCmd(t, "stats", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 records")

	out, err = runCmd(t, "stats", "--json", path)
	require.NoError(t, err)
	var st struct {
		Records int `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 2, st.Records)
}

func TestDumpAndRepairCmd(t *testing.T) {
	path := writeStore(t, "one", "two")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("20210909044900\"thr")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := runCmd(t, "dump", path)
	require.NoError(t, err)
	assert.Contains(t, out, "two\n")
	assert.Contains(t, out, "truncated record")

	out, err = runCmd(t, "repair", path)
	require.NoError(t, err)
	assert.Contains(t, out, "removed 18 bytes of partial records")

	out, err = runCmd(t, "repair", path)
	require.NoError(t, err)
	assert.Contains(t, out, "doesn't need repair")
}

func TestConfigCmd(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "insertrow.yaml")
	d := "store_path: " + filepath.Join(dir, "db.txt") + "\ntitle: Guestbook\narchive:\n  secret: hunter2\n"
	require.NoError(t, os.WriteFile(configPath, []byte(d), 0644))

	out, err := runCmd(t, "config", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "title: Guestbook")
	assert.Contains(t, out, "max_record_len: 5000")
	assert.False(t, strings.Contains(out, "hunter2"))
}

func TestDumpDamagedStore(t *testing.T) {
	path := writeStore(t, "one")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("20210909044900\"tw")
	require.NoError(t, err)
	rec, err := row.Encode(0, frozen, []byte("three"))
	require.NoError(t, err)
	_, err = f.Write(rec)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := runCmd(t, "dump", path)
	require.NoError(t, err)
	assert.Contains(t, out, "one\n")
	assert.Contains(t, out, "three\n")
	assert.Contains(t, out, "skipped 17 damaged bytes at offset 20")

	out, err = runCmd(t, "repair", path)
	require.NoError(t, err)
	assert.Contains(t, out, "removed")
	out, err = runCmd(t, "stats", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 records")
	assert.NotContains(t, out, "damaged ranges")
}

func TestDownloadPath(t *testing.T) {
	assert.Equal(t, "db-20210909044900.txt.br", downloadPath("apps/2021/09-09/db-20210909044900.txt.br", nil))
	assert.Equal(t, "local.br", downloadPath("apps/db.txt.br", []string{"local.br"}))
}

func TestCgiWithoutContentLength(t *testing.T) {
	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "db.txt")
	d, err := insert.NewDriver(cfg)
	require.NoError(t, err)
	d.Clock = func() time.Time { return frozen }
	h := insert.NewHandler(d)

	stdin := strings.NewReader("from stdin")
	// the way net/http/cgi builds a request without CONTENT_LENGTH
	r := httptest.NewRequest("POST", "/insert", http.NoBody)
	rec := httptest.NewRecorder()
	withStdinBody(h, stdin, false).ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	// declared length: stdin is not touched
	r = httptest.NewRequest("POST", "/insert", strings.NewReader("declared"))
	withStdinBody(h, strings.NewReader("ignored"), true).ServeHTTP(httptest.NewRecorder(), r)

	recs, err := rowstore.Records(cfg.StorePath)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "from stdin", string(recs[0].Body))
	assert.Equal(t, "declared", string(recs[1].Body))
}
