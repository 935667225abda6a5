package rowstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kjk/insertrow/row"
)

// Repair removes what interrupted writes left in the store: partial
// records followed by other records and a truncated record at the end.
// Returns number of bytes removed.
// The store is re-written to a temporary file and renamed over the original
// so a crash during Repair leaves either the old or the new store.
// Appends done while Repair runs are lost, stop writers first
func Repair(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	nRecords := 0
	layout, err := ForEach(f, func(*row.Record) error {
		nRecords++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("'%s' can't be repaired: %w", path, err)
	}
	if layout.Clean() {
		return 0, nil
	}
	if nRecords == 0 {
		// most likely not a store, don't truncate it to nothing
		return 0, fmt.Errorf("'%s' can't be repaired: %w: no records found", path, row.ErrMalformed)
	}

	var readers []io.Reader
	var kept int64
	for _, span := range layout.Kept() {
		readers = append(readers, io.NewSectionReader(f, span.Offset, span.Size))
		kept += span.Size
	}
	err = writeFileAtomically(path, io.MultiReader(readers...), st.Mode().Perm())
	if err != nil {
		return 0, err
	}
	return st.Size() - kept, nil
}

func writeFileAtomically(dstPath string, r io.Reader, perm os.FileMode) (err error) {
	dir, name := filepath.Split(dstPath)
	dir, err = filepath.Abs(dir)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+".repair-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(tmpPath)
		}
	}()

	_, err = io.Copy(tmp, r)
	if err == nil {
		err = tmp.Chmod(perm)
	}
	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmp.Sync()
	errClose := tmp.Close()
	if err == nil {
		err = errSync
	}
	if err == nil {
		err = errClose
	}
	if err != nil {
		return err
	}
	if err = os.Rename(tmpPath, dstPath); err != nil {
		return err
	}
	didRename = true
	// nice to have, not a must
	if fdir, _ := os.Open(dir); fdir != nil {
		_ = fdir.Sync()
		_ = fdir.Close()
	}
	return nil
}
