package flightplan

import (
	"errors"
	"fmt"

	"github.com/xyproto/satstore/internal/media"
)

// Sentinel errors returned by Engine operations. The façade (repository.go,
// in the root package) classifies these into its error-category taxonomy;
// this package stays free of that dependency to avoid an import cycle.
var (
	// ErrNoFreeSlot is returned by Set when every TLB slot is occupied and
	// a rebuild could not reclaim one.
	ErrNoFreeSlot = errors.New("flightplan: no free TLB slot")
	// ErrNotFound is returned by Get/Delete when no live entry matches the
	// requested unixtime.
	ErrNotFound = errors.New("flightplan: no entry with that unixtime")
	// ErrTombstoned is returned by GetIdx for a slot that is empty or
	// already deleted. DeleteIdx on such a slot succeeds and leaves it empty.
	ErrTombstoned = errors.New("flightplan: slot is empty or tombstoned")
)

// Engine is the flight-plan component: insert, lookup, delete, purge, and
// reset operations over a TLB-indexed run of 512-byte flash pages, with
// compaction when the live section fills.
type Engine struct {
	backend media.Backend
	tlb     *TLB

	fpBase             uint64 // flash address of the live (appendable) section
	page               int
	section            int
	commandsPerSection int // how many 512-byte entries fit in one section
	fpTotalSections    int // total sections reserved for flight-plan data (addrmap.FPSections)
}

// NewEngine wires an Engine to its TLB and flash geometry. fpTotalSections
// is the number of sections addrmap reserved for flight-plan data (only the
// first is ever the "live" append section; the rest is headroom carried
// forward from the address-map formula).
func NewEngine(backend media.Backend, tlb *TLB, fpBase uint64, page, section, fpTotalSections int) (*Engine, error) {
	if EntrySize != page {
		return nil, fmt.Errorf("flightplan: sizeof(fp_entry) (%d) must equal PAGE (%d)", EntrySize, page)
	}
	if section%page != 0 {
		return nil, fmt.Errorf("flightplan: section (%d) must be a multiple of page (%d)", section, page)
	}
	return &Engine{
		backend:            backend,
		tlb:                tlb,
		fpBase:             fpBase,
		page:               page,
		section:            section,
		commandsPerSection: section / page,
		fpTotalSections:    fpTotalSections,
	}, nil
}

// Init loads the in-RAM TLB from its backup medium. If drop is true the
// flight plan is wiped back to empty instead (flash erased, TLB reset),
// useful for a deliberate factory reset rather than a normal warm boot.
func (e *Engine) Init(drop bool) error {
	if drop {
		return e.Reset()
	}
	return e.tlb.Load()
}

// Set inserts entry, compacting the live section first if the append
// cursor has reached its capacity. See DESIGN.md for why this checks
// counter >= commandsPerSection rather than the original's strict >.
func (e *Engine) Set(entry Entry) error {
	if entry.Unixtime == NullTime {
		return fmt.Errorf("flightplan: Set: unixtime %d is the reserved empty sentinel", NullTime)
	}
	if int(e.tlb.Counter()) >= e.commandsPerSection {
		if err := e.rebuild(); err != nil {
			return fmt.Errorf("flightplan: Set: rebuild: %w", err)
		}
	}

	k := e.tlb.FindIndex(NullTime)
	if k == -1 {
		return ErrNoFreeSlot
	}

	cursor := e.tlb.Counter()
	addr := e.fpBase + uint64(cursor)*uint64(e.page)

	// Update the TLB (and persist it) before the flash write: a crash here
	// leaves at worst a forward reference to unwritten flash, which a
	// later Get will read as garbage. Documented, not prevented.
	if err := e.tlb.Update(k, entry.Unixtime, int32(addr)); err != nil {
		return fmt.Errorf("flightplan: Set: updating TLB: %w", err)
	}

	buf := entry.Marshal()
	if err := e.backend.FlashWrite(addr, buf[:]); err != nil {
		return fmt.Errorf("flightplan: Set: writing entry: %w", err)
	}
	return nil
}

// Get locates the live entry scheduled at unixtime t and reads it back.
func (e *Engine) Get(t int32) (Entry, error) {
	k := e.tlb.FindIndex(t)
	if k == -1 {
		return Entry{}, ErrNotFound
	}
	return e.GetIdx(k)
}

// GetIdx reads the entry at TLB slot k directly, failing if the slot is
// empty or tombstoned.
func (e *Engine) GetIdx(k int) (Entry, error) {
	unixtime, addr, ok := e.tlb.EntryAt(k)
	if !ok {
		return Entry{}, fmt.Errorf("flightplan: GetIdx: slot %d out of range", k)
	}
	if unixtime == NullTime {
		return Entry{}, ErrTombstoned
	}
	buf := make([]byte, EntrySize)
	if err := e.backend.FlashRead(uint64(addr), buf); err != nil {
		return Entry{}, fmt.Errorf("flightplan: GetIdx: %w", err)
	}
	return Unmarshal(buf)
}

// GetArgs returns just the Cmd/Args strings for the entry scheduled at t,
// for callers that only need the command payload. Truncation (a Cmd/Args
// longer than its 248-byte field at write time) is not reported here;
// callers receive exactly what Marshal/Unmarshal round-tripped.
func (e *Engine) GetArgs(t int32) (cmd, args string, err error) {
	entry, err := e.Get(t)
	if err != nil {
		return "", "", err
	}
	return entry.Cmd, entry.Args, nil
}

// Delete tombstones the live entry scheduled at t. It never touches flash,
// only the TLB bookkeeping.
func (e *Engine) Delete(t int32) error {
	k := e.tlb.FindIndex(t)
	if k == -1 {
		return ErrNotFound
	}
	return e.DeleteIdx(k)
}

// DeleteIdx tombstones TLB slot k directly.
func (e *Engine) DeleteIdx(k int) error {
	return e.tlb.EraseIndex(k)
}

// Reset erases every flight-plan section and resets the TLB to empty with
// counter 0. Calling Reset twice in a row is a no-op the second time from
// the caller's perspective: both calls succeed and leave the same
// observable state.
func (e *Engine) Reset() error {
	for i := 0; i < e.fpTotalSections; i++ {
		sectionAddr := e.fpBase + uint64(i*e.section)
		if err := e.backend.FlashErase(sectionAddr); err != nil {
			return fmt.Errorf("flightplan: Reset: erasing section %d: %w", i, err)
		}
	}
	return e.tlb.Reset()
}

// LiveCount returns the number of non-tombstoned TLB slots, used by the
// façade to recompute fpl_queue at open and after inserts, deletes and
// fp_purge.
func (e *Engine) LiveCount() int {
	n := 0
	for k := 0; k < e.tlb.NMax(); k++ {
		if unixtime, _, ok := e.tlb.EntryAt(k); ok && unixtime != NullTime {
			n++
		}
	}
	return n
}

// LiveUnixtimes returns the scheduled times of every live entry, in TLB
// slot order, used by the façade's fp_purge to find due entries.
func (e *Engine) LiveUnixtimes() []int32 {
	var out []int32
	for k := 0; k < e.tlb.NMax(); k++ {
		if unixtime, _, ok := e.tlb.EntryAt(k); ok && unixtime != NullTime {
			out = append(out, unixtime)
		}
	}
	return out
}

// rebuild is the compaction pass: read the whole live section, erase it,
// then replay every still-live entry densely from offset 0, updating the
// TLB's recorded address (and the append counter) as it goes, finally
// persisting the whole table once.
func (e *Engine) rebuild() error {
	liveBytes := e.commandsPerSection * e.page
	raw := make([]byte, liveBytes)
	if err := e.backend.FlashRead(e.fpBase, raw); err != nil {
		return fmt.Errorf("reading live section: %w", err)
	}
	if err := e.backend.FlashErase(e.fpBase); err != nil {
		return fmt.Errorf("erasing live section: %w", err)
	}
	e.tlb.setCounter(0)

	for k := 0; k < e.tlb.NMax(); k++ {
		unixtime, addr, _ := e.tlb.EntryAt(k)
		if unixtime == NullTime {
			continue
		}
		oldOffset := int(uint64(addr) - e.fpBase)
		if oldOffset < 0 || oldOffset+e.page > liveBytes {
			return fmt.Errorf("rebuild: slot %d address 0x%x lies outside the live section", k, addr)
		}
		data := raw[oldOffset : oldOffset+e.page]

		newCursor := e.tlb.Counter()
		newAddr := e.fpBase + uint64(newCursor)*uint64(e.page)
		if err := e.backend.FlashWrite(newAddr, data); err != nil {
			return fmt.Errorf("rewriting slot %d: %w", k, err)
		}
		e.tlb.setAddr(k, int32(newAddr))
		e.tlb.setCounter(newCursor + 1)
	}

	return e.tlb.Dump(-1)
}
