package satstore

import (
	"errors"
	"sync"

	"github.com/xyproto/satstore/internal/flightplan"
	"github.com/xyproto/satstore/internal/media"
	"github.com/xyproto/satstore/internal/payload"
	"github.com/xyproto/satstore/internal/status"
)

// Repository is the storage façade: a single mutex serializes every call
// into the status table, flight-plan engine, and payload store beneath it,
// and it maintains the two counters the engines themselves don't (fpl_queue,
// and each payload's next append index).
type Repository struct {
	mu     sync.Mutex
	desc   *descriptor
	isOpen bool

	fplQueue    int
	payloadNext []int // next append index per payload, for Append
}

func newRepository(desc *descriptor) *Repository {
	r := &Repository{desc: desc, isOpen: true}
	r.fplQueue = desc.fp.LiveCount()
	r.payloadNext = make([]int, desc.cfg.NPayloads)
	return r
}

// Close releases the underlying media backend. Further calls on r return a
// CategoryNotOpen error.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isOpen {
		return newErr("storage_close", CategoryNotOpen, nil)
	}
	r.isOpen = false
	if err := r.desc.backend.Close(); err != nil {
		return newErr("storage_close", CategoryMedia, err)
	}
	r.desc.log.Verbosef("storage_close: closed")
	return nil
}

func (r *Repository) requireOpen(op string) error {
	if !r.isOpen {
		return newErr(op, CategoryNotOpen, nil)
	}
	return nil
}

// --- status table ---

// StatusGet reads logical status-table index i, majority-voting across
// physical copies when triple-redundancy is enabled.
func (r *Repository) StatusGet(i int) (status.Value32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("status_get"); err != nil {
		return status.Value32{}, err
	}
	v, err := r.desc.status.Get(i)
	if err != nil {
		if _, ok := err.(*status.ErrVotingDisagreement); ok {
			r.desc.log.Warnf("status_get(%d): %v", i, err)
			return v, newErr("status_get", CategoryVoting, err)
		}
		return v, newErr("status_get", CategoryBounds, err)
	}
	return v, nil
}

// StatusSet writes logical status-table index i, writing every physical
// copy when triple-redundancy is enabled.
func (r *Repository) StatusSet(i int, v status.Value32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("status_set"); err != nil {
		return err
	}
	if err := r.desc.status.Set(i, v); err != nil {
		return newErr("status_set", CategoryBounds, err)
	}
	return nil
}

// --- flight plan ---

// FlightPlanSet inserts the deferred command scheduled at entry.Unixtime
// into the first free TLB slot, compacting the live flash section first if
// needed. An existing entry with the same unixtime is not overwritten; both
// are kept, and lookups by time find the lower-indexed one.
func (r *Repository) FlightPlanSet(entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("flight_plan_set"); err != nil {
		return err
	}
	if err := r.desc.fp.Set(entry); err != nil {
		return newErr("flight_plan_set", flightErrCategory(err), err)
	}
	r.fplQueue = r.desc.fp.LiveCount()
	return nil
}

// FlightPlanGet looks up the live entry scheduled at unixtime t.
func (r *Repository) FlightPlanGet(t int32) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("flight_plan_get"); err != nil {
		return Entry{}, err
	}
	e, err := r.desc.fp.Get(t)
	if err != nil {
		return Entry{}, newErr("flight_plan_get", flightErrCategory(err), err)
	}
	return e, nil
}

// FlightPlanGetIdx reads the entry at TLB slot k directly.
func (r *Repository) FlightPlanGetIdx(k int) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("flight_plan_get_idx"); err != nil {
		return Entry{}, err
	}
	e, err := r.desc.fp.GetIdx(k)
	if err != nil {
		return Entry{}, newErr("flight_plan_get_idx", flightErrCategory(err), err)
	}
	return e, nil
}

// FlightPlanGetArgs returns just the Cmd/Args payload of the entry
// scheduled at t.
func (r *Repository) FlightPlanGetArgs(t int32) (cmd, args string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("flight_plan_get_args"); err != nil {
		return "", "", err
	}
	cmd, args, err = r.desc.fp.GetArgs(t)
	if err != nil {
		return "", "", newErr("flight_plan_get_args", flightErrCategory(err), err)
	}
	return cmd, args, nil
}

// FlightPlanDelete tombstones the entry scheduled at t.
func (r *Repository) FlightPlanDelete(t int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("flight_plan_delete"); err != nil {
		return err
	}
	if err := r.desc.fp.Delete(t); err != nil {
		return newErr("flight_plan_delete", flightErrCategory(err), err)
	}
	r.fplQueue = r.desc.fp.LiveCount()
	return nil
}

// FlightPlanDeleteIdx tombstones TLB slot k directly.
func (r *Repository) FlightPlanDeleteIdx(k int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("flight_plan_delete_idx"); err != nil {
		return err
	}
	if err := r.desc.fp.DeleteIdx(k); err != nil {
		return newErr("flight_plan_delete_idx", flightErrCategory(err), err)
	}
	r.fplQueue = r.desc.fp.LiveCount()
	return nil
}

// FlightPlanReset erases the whole flight plan back to empty.
func (r *Repository) FlightPlanReset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("flight_plan_reset"); err != nil {
		return err
	}
	if err := r.desc.fp.Reset(); err != nil {
		return newErr("flight_plan_reset", CategoryMedia, err)
	}
	r.fplQueue = 0
	return nil
}

// FlightPlanQueueLen returns fpl_queue: the number of live flight-plan
// entries as of the last insert, delete, purge, or reset.
func (r *Repository) FlightPlanQueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fplQueue
}

// FlightPlanPurge is fp_purge: deletes every live entry whose unixtime is
// due (<= now), then recounts fpl_queue. It returns the number of entries
// purged.
func (r *Repository) FlightPlanPurge(now int32) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("flight_plan_purge"); err != nil {
		return 0, err
	}
	due := []int32{}
	for _, t := range r.desc.fp.LiveUnixtimes() {
		if t <= now {
			due = append(due, t)
		}
	}
	purged := 0
	for _, t := range due {
		if err := r.desc.fp.Delete(t); err != nil {
			r.desc.log.Warnf("flight_plan_purge: deleting due entry %d: %v", t, err)
			continue
		}
		purged++
	}
	r.fplQueue = r.desc.fp.LiveCount()
	return purged, nil
}

// flightErrCategory classifies an error internal/flightplan returned: its
// sentinel errors map to Full/Bounds, anything else is assumed to be a media
// failure bubbling up unchanged.
func flightErrCategory(err error) ErrorCategory {
	switch {
	case errors.Is(err, flightplan.ErrNoFreeSlot):
		return CategoryFull
	case errors.Is(err, flightplan.ErrNotFound), errors.Is(err, flightplan.ErrTombstoned):
		return CategoryBounds
	default:
		return CategoryMedia
	}
}

// payloadErrCategory classifies an error internal/payload or internal/media
// returned: a page-straddle is Alignment, an out-of-range access is Bounds,
// anything else (a genuine backend read/write/erase failure) is Media.
func payloadErrCategory(err error) ErrorCategory {
	var oor *media.ErrOutOfRange
	switch {
	case errors.Is(err, payload.ErrStraddle):
		return CategoryAlignment
	case errors.Is(err, payload.ErrBounds), errors.As(err, &oor):
		return CategoryBounds
	default:
		return CategoryMedia
	}
}

// --- payload store ---

// PayloadSet writes one sample of payload p at explicit index i.
func (r *Repository) PayloadSet(p, i int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("payload_set_data"); err != nil {
		return err
	}
	schema, err := r.desc.schemaFor(p)
	if err != nil {
		return newErr("payload_set_data", CategoryBounds, err)
	}
	if err := r.desc.pay.Set(p, i, data, schema); err != nil {
		return newErr("payload_set_data", payloadErrCategory(err), err)
	}
	return nil
}

// PayloadGet reads one sample of payload p at explicit index i into buf.
func (r *Repository) PayloadGet(p, i int, buf []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("payload_get_data"); err != nil {
		return err
	}
	schema, err := r.desc.schemaFor(p)
	if err != nil {
		return newErr("payload_get_data", CategoryBounds, err)
	}
	if err := r.desc.pay.Get(p, i, buf, schema); err != nil {
		return newErr("payload_get_data", payloadErrCategory(err), err)
	}
	return nil
}

// PayloadAppend writes data at payload p's next free append index,
// advancing that counter only on success and wrapping around to 0 once the
// payload's reserved flash is full, so the store behaves as an append-only
// ring buffer.
func (r *Repository) PayloadAppend(p int, data []byte) (index int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("payload_set_data"); err != nil {
		return 0, err
	}
	if p < 0 || p >= len(r.payloadNext) {
		return 0, newErr("payload_set_data", CategoryBounds, nil)
	}
	schema, err := r.desc.schemaFor(p)
	if err != nil {
		return 0, newErr("payload_set_data", CategoryBounds, err)
	}
	i := r.payloadNext[p]
	if err := r.desc.pay.Set(p, i, data, schema); err != nil {
		return 0, newErr("payload_set_data", payloadErrCategory(err), err)
	}
	capacity := r.desc.pay.Capacity(int(schema.Size))
	next := i + 1
	if capacity > 0 && next >= capacity {
		next = 0
	}
	r.payloadNext[p] = next
	return i, nil
}

// PayloadNextIndex reports payload p's current append cursor (sys_index).
func (r *Repository) PayloadNextIndex(p int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p < 0 || p >= len(r.payloadNext) {
		return 0
	}
	return r.payloadNext[p]
}

// PayloadResetTable erases payload p's reserved sections and resets its
// append cursor to 0.
func (r *Repository) PayloadResetTable(p int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("payload_reset_table"); err != nil {
		return err
	}
	if err := r.desc.pay.ResetTable(p); err != nil {
		return newErr("payload_reset_table", CategoryMedia, err)
	}
	if p >= 0 && p < len(r.payloadNext) {
		r.payloadNext[p] = 0
	}
	return nil
}

// PayloadReset erases every payload's reserved sections and resets every
// append cursor to 0.
func (r *Repository) PayloadReset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireOpen("payload_reset"); err != nil {
		return err
	}
	if err := r.desc.pay.Reset(); err != nil {
		return newErr("payload_reset", CategoryMedia, err)
	}
	for i := range r.payloadNext {
		r.payloadNext[i] = 0
	}
	return nil
}
