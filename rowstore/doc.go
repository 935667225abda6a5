// Package rowstore appends encoded records to a store file.
//
// A store is a single file of records (see package row) with no header
// and no index. Records are only appended, never modified.
//
// # Appending
//
//	h, err := rowstore.OpenForAppend(path)
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//	size, err := h.Size()
//	if err != nil {
//	    return err
//	}
//	if err = rowstore.CheckCapacity(size, maxSize); err != nil {
//	    return err
//	}
//	err = h.WriteRecord(rec)
//	if err != nil {
//	    return err
//	}
//	return h.Close()
//
// The capacity check and the write are not atomic: other processes can append
// between them, so the ceiling is enforced on a best-effort basis.
// A record is written with a single write(2) to a file opened with O_APPEND
// which doesn't interleave with appends from other processes for records of
// this size on local file systems.
//
// # Maintenance
//
// [Stat] and [Records] scan the store. A failed write leaves a partial
// record and later appends follow it; readers skip it and report it as a
// damaged range. [Repair] removes damaged ranges and a truncated record
// at the end.
package rowstore
