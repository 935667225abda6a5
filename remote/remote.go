// Package remote downloads the store from the web host over ssh
package remote

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kjk/insertrow/config"
	"github.com/kjk/insertrow/u"
	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
)

var Logf = func(format string, args ...any) {
	fmt.Printf(format, args...)
}

// Validate checks that c has everything needed to connect
func Validate(c *config.Remote) error {
	if c == nil {
		return errors.New("must provide remote config")
	}
	if c.User == "" || c.Host == "" {
		return errors.New("must provide remote user and host")
	}
	if c.KeyPath == "" {
		return errors.New("must provide remote key_path")
	}
	if c.Path == "" {
		return errors.New("must provide remote path of the store")
	}
	return nil
}

func connect(c *config.Remote) (*goph.Client, error) {
	auth, err := goph.Key(u.ExpandTildeInPath(c.KeyPath), "")
	if err != nil {
		return nil, fmt.Errorf("goph.Key('%s') failed with '%w'", c.KeyPath, err)
	}
	cb, err := goph.DefaultKnownHosts()
	if err != nil {
		return nil, err
	}
	port := c.Port
	if port == 0 {
		port = 22
	}
	return goph.NewConn(&goph.Config{
		User:     c.User,
		Addr:     c.Host,
		Port:     port,
		Auth:     auth,
		Timeout:  20 * time.Second,
		Callback: cb,
	})
}

// Pull downloads the store to localPath. Returns size of downloaded file
func Pull(c *config.Remote, localPath string) (int64, error) {
	if err := Validate(c); err != nil {
		return 0, err
	}
	client, err := connect(c)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	sc, err := client.NewSftp()
	if err != nil {
		return 0, err
	}
	defer sc.Close()
	if _, err = remoteSize(sc, c.Path); err != nil {
		return 0, err
	}

	if err = os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return 0, err
	}
	timeStart := time.Now()
	if err = client.Download(c.Path, localPath); err != nil {
		return 0, fmt.Errorf("client.Download('%s') failed with '%w'", c.Path, err)
	}
	size := u.FileSize(localPath)
	Logf("downloaded '%s' (%s) to '%s' in %s\n", c.Path, u.FormatSize(size), localPath, time.Since(timeStart))
	return size, nil
}

func remoteSize(sc *sftp.Client, path string) (int64, error) {
	fi, err := sc.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("store '%s' doesn't exist on the server: %w", path, err)
	}
	if fi.IsDir() {
		return 0, fmt.Errorf("'%s' on the server is a directory", path)
	}
	return fi.Size(), nil
}
