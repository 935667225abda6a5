package insert

import (
	"fmt"
	"io"
	"time"

	"github.com/kjk/insertrow/config"
	"github.com/kjk/insertrow/log"
	"github.com/kjk/insertrow/row"
	"github.com/kjk/insertrow/rowstore"
)

// Driver appends request bodies to the store
type Driver struct {
	Config *config.Config
	// time source for record tags, row.SystemClock if nil
	Clock row.Clock
	// opens the store, rowstore.OpenForAppend if nil
	Open func(path string) (*rowstore.Handle, error)
}

func NewDriver(cfg *config.Config) (*Driver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("must provide config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		Config: cfg,
	}, nil
}

func (d *Driver) now() time.Time {
	if d.Clock == nil {
		return row.SystemClock()
	}
	return d.Clock()
}

func (d *Driver) open(path string) (*rowstore.Handle, error) {
	if d.Open == nil {
		return rowstore.OpenForAppend(path)
	}
	return d.Open(path)
}

// Insert encodes body as one record and appends it to the store.
// Store capacity is checked before body is read: a full store doesn't
// consume any input. Reading stops at the first byte that can't be stored.
// Either the whole record is appended or nothing is, except for ShortWrite.
// Size check and write are not atomic across concurrent inserts
func (d *Driver) Insert(body io.Reader) Outcome {
	cfg := d.Config
	h, err := d.open(cfg.StorePath)
	if err != nil {
		return newOutcome(err)
	}
	defer h.Close()
	h.Sync = cfg.SyncWrites

	size, err := h.Size()
	if err != nil {
		return newOutcome(err)
	}
	if err = rowstore.CheckCapacity(size, cfg.MaxStoreSize); err != nil {
		return newOutcome(err)
	}

	enc := row.NewEncoder(cfg.MaxRecordLen, d.now())
	if _, err = enc.ReadFrom(body); err != nil {
		return newOutcome(err)
	}
	rec := enc.Finish()

	if err = h.WriteRecord(rec); err != nil {
		return newOutcome(err)
	}
	if err = h.Close(); err != nil {
		return newOutcome(fmt.Errorf("closing '%s': %w", cfg.StorePath, err))
	}
	return Outcome{
		Kind: Success,
		Size: int64(len(rec)),
	}
}

// LogOutcome records an insert in the events log. Fatal outcomes are
// also logged as errors
func LogOutcome(o Outcome, dur time.Duration, vals ...any) {
	vals = append(vals, "kind", o.Kind.String(), "size", o.Size)
	if o.Err != nil {
		vals = append(vals, "error", o.Err.Error())
	}
	log.EventWithDuration("insert", dur, vals...)
	if o.Kind.Fatal() {
		log.Errorf("insert failed: %s: %s", o.Kind, o.Err)
	}
}
