package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/kjk/insertrow/archive"
	"github.com/kjk/insertrow/remote"
	"github.com/kjk/insertrow/row"
	"github.com/kjk/insertrow/rowstore"
	"github.com/kjk/insertrow/u"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

// storePathArg returns store to read: from args if given, otherwise
// from config
func storePathArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if err := loadConfig(cmd, args); err != nil {
		return "", err
	}
	return cfg.StorePath, nil
}

type jsonRecord struct {
	Tag    string `json:"tag"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	Body   string `json:"body"`
}

func writeJSON(w io.Writer, v any) error {
	d, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(d))
	return err
}

// dumpRecords writes records from r as text or, if asJSON, json lines
func dumpRecords(w io.Writer, r io.Reader, asJSON bool) (*rowstore.Layout, error) {
	return rowstore.ForEach(r, func(rec *row.Record) error {
		if asJSON {
			return writeJSON(w, &jsonRecord{
				Tag:    rec.Tag,
				Offset: rec.Offset,
				Size:   rec.Size,
				Body:   string(rec.Body),
			})
		}
		_, err := fmt.Fprintf(w, "--- %s %s\n%s\n", rec.Tag, rec.Time.Format(time.DateTime), rec.Body)
		return err
	})
}

func newDumpCmd() *cobra.Command {
	var flgJSON bool
	cmd := &cobra.Command{
		Use:   "dump [store]",
		Short: "print records of a store or a compressed snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := storePathArg(cmd, args)
			if err != nil {
				return err
			}
			f, err := u.OpenFileMaybeCompressed(path)
			if err != nil {
				return err
			}
			defer f.Close()
			layout, err := dumpRecords(cmd.OutOrStdout(), f, flgJSON)
			if err != nil {
				return err
			}
			for _, d := range layout.Damaged {
				fmt.Fprintf(cmd.ErrOrStderr(), "'%s': skipped %d damaged bytes at offset %d\n", path, d.Size, d.Offset)
			}
			if layout.Truncated {
				fmt.Fprintf(cmd.ErrOrStderr(), "'%s' ends with a truncated record\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&flgJSON, "json", false, "print records as json")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var flgJSON bool
	cmd := &cobra.Command{
		Use:   "stats [store]",
		Short: "show size and number of records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := storePathArg(cmd, args)
			if err != nil {
				return err
			}
			st, err := rowstore.Stat(path)
			if err != nil {
				return err
			}
			if flgJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&flgJSON, "json", false, "print stats as json")
	return cmd
}

func newRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair [store]",
		Short: "remove partial records left by interrupted writes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := storePathArg(cmd, args)
			if err != nil {
				return err
			}
			n, err := rowstore.Repair(path)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "'%s' doesn't need repair\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s of partial records from '%s'\n", u.FormatSize(n), path)
			return nil
		},
	}
}

// downloadPath returns where archive --get saves remotePath
func downloadPath(remotePath string, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return path.Base(remotePath)
}

func newArchiveCmd() *cobra.Command {
	var flgList bool
	var flgGet string
	cmd := &cobra.Command{
		Use:     "archive [dst]",
		Short:   "upload compressed snapshot of the store to s3-compatible storage",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := archive.New(ctx, &cfg.Archive)
			if err != nil {
				return err
			}
			if flgList {
				paths, err := c.List(ctx)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			}
			if flgGet != "" {
				dst := downloadPath(flgGet, args)
				if err = c.Download(ctx, flgGet, dst); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "downloaded '%s' to '%s' (%s)\n", flgGet, dst, u.FormatSize(u.FileSize(dst)))
				return nil
			}
			timeStart := time.Now()
			remotePath, size, err := c.Upload(ctx, cfg.StorePath, timeStart)
			if err != nil {
				return err
			}
			pct := u.Percent(u.FileSize(cfg.StorePath), size)
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded '%s' (%s, %.1f%% of store) in %s\n", remotePath, u.FormatSize(size), pct, u.FormatDuration(time.Since(timeStart)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&flgList, "list", false, "list uploaded snapshots")
	cmd.Flags().StringVar(&flgGet, "get", "", "download snapshot with this remote path to [dst]")
	return cmd
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "pull [dst]",
		Short:   "download the store from the web host",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			dst := filepath.Base(cfg.Remote.Path)
			if len(args) > 0 {
				dst = args[0]
			}
			remote.Logf = func(format string, args ...any) {
				fmt.Fprintf(cmd.OutOrStdout(), format, args...)
			}
			_, err := remote.Pull(&cfg.Remote, dst)
			return err
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "config",
		Short:   "print resolved config",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(d)
			return err
		},
	}
}
