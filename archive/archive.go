package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/kjk/insertrow/config"
	"github.com/kjk/insertrow/row"
	"github.com/kjk/insertrow/u"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Client uploads compressed snapshots of the store to s3-compatible storage
type Client struct {
	Client *minio.Client
	config *config.Archive
}

func New(ctx context.Context, c *config.Archive) (*Client, error) {
	if c == nil {
		return nil, errors.New("must provide config")
	}
	if c.Access == "" || c.Secret == "" || c.Bucket == "" || c.Endpoint == "" {
		return nil, errors.New("must provide archive endpoint, access, secret and bucket")
	}

	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Access, c.Secret, ""),
		Region: c.Region,
		Secure: true,
	})
	if err != nil {
		return nil, err
	}
	found, err := mc.BucketExists(ctx, c.Bucket)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("bucket '%s' doesn't exist", c.Bucket)
	}
	return &Client{
		Client: mc,
		config: c,
	}, nil
}

// RemotePath returns where a snapshot of storePath taken at t is stored:
// <prefix>/2021/09-09/<name>-20210909044900.txt.br
func RemotePath(prefix string, storePath string, t time.Time, compression string) string {
	name := filepath.Base(storePath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = fmt.Sprintf("%s-%s.txt.%s", name, row.Tag(t), compression)
	return path.Join(prefix, t.Format("2006"), t.Format("01-02"), name)
}

// Snapshot compresses the store into dir. Returns path of the snapshot.
// Records appended while compressing may or may not be included, at the end
// there can be a truncated record which readers skip
func Snapshot(storePath string, dir string, t time.Time, compression string) (string, error) {
	if !u.FileExists(storePath) {
		return "", fmt.Errorf("store '%s' doesn't exist", storePath)
	}
	name := filepath.Base(RemotePath("", storePath, t, compression))
	dst := filepath.Join(dir, name)
	if _, err := u.CompressFile(dst, storePath); err != nil {
		return "", err
	}
	return dst, nil
}

// Upload takes a snapshot of the store and uploads it.
// Returns remote path and size of uploaded snapshot
func (c *Client) Upload(ctx context.Context, storePath string, t time.Time) (string, int64, error) {
	compression := c.config.Compression
	if compression == "" {
		compression = "br"
	}
	tmpDir, err := os.MkdirTemp("", "insertrow-archive")
	if err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(tmpDir)

	localPath, err := Snapshot(storePath, tmpDir, t, compression)
	if err != nil {
		return "", 0, err
	}
	remotePath := RemotePath(c.config.Prefix, storePath, t, compression)
	opts := minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}
	info, err := c.Client.FPutObject(ctx, c.config.Bucket, remotePath, localPath, opts)
	if err != nil {
		return "", 0, fmt.Errorf("uploading '%s' as '%s': %w", localPath, remotePath, err)
	}
	return remotePath, info.Size, nil
}

// List returns remote paths of snapshots under prefix
func (c *Client) List(ctx context.Context) ([]string, error) {
	opts := minio.ListObjectsOptions{
		Prefix:    c.config.Prefix,
		Recursive: true,
	}
	var res []string
	for obj := range c.Client.ListObjects(ctx, c.config.Bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		res = append(res, obj.Key)
	}
	return res, nil
}

// Download fetches a snapshot to dstPath
func (c *Client) Download(ctx context.Context, remotePath string, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	return c.Client.FGetObject(ctx, c.config.Bucket, remotePath, dstPath, minio.GetObjectOptions{})
}
