package flightplan

import (
	"encoding/binary"
	"fmt"

	"github.com/xyproto/satstore/internal/media"
)

// tlbEntrySize is sizeof(fp_tlb_entry) on disk: two little-endian int32s.
const tlbEntrySize = 8

// Location selects where the TLB is backed up.
type Location int

const (
	LocationFRAM Location = iota
	LocationFlash
)

type tlbEntry struct {
	Unixtime int32
	Addr     int32
}

// TLB is an in-RAM array of N_max+1 slots. Slots
// [0, NMax) hold {unixtime, flash_addr} for each logical flight-plan entry
// (or {-1,-1} if empty/tombstoned); slot NMax is metadata whose Addr field
// counts the number of physical flash slots ever allocated in the live
// section (the append cursor) and whose Unixtime field is unused.
//
// TLB is the single source of truth for which physical flight-plan entries
// are live: flash is never consulted to answer that question, only to
// fetch the payload once an address is known.
type TLB struct {
	backend media.Backend
	loc     Location

	framAddr  uint64 // FRAM backup address, when loc == LocationFRAM
	flashAddr uint64 // flash section base, when loc == LocationFlash
	page      int

	nMax    int
	entries []tlbEntry
}

// New creates a TLB for nMax logical entries. page must evenly divide by
// tlbEntrySize (asserted, so slot boundaries coincide with page boundaries
// in flash mode).
func New(backend media.Backend, nMax int, loc Location, framAddr, flashAddr uint64, page int) (*TLB, error) {
	if page%tlbEntrySize != 0 {
		return nil, fmt.Errorf("flightplan: PAGE (%d) must be a multiple of sizeof(tlb_entry) (%d)", page, tlbEntrySize)
	}
	if nMax <= 0 {
		return nil, fmt.Errorf("flightplan: NMax must be positive, got %d", nMax)
	}
	t := &TLB{
		backend:   backend,
		loc:       loc,
		framAddr:  framAddr,
		flashAddr: flashAddr,
		page:      page,
		nMax:      nMax,
		entries:   make([]tlbEntry, nMax+1),
	}
	for i := range t.entries {
		t.entries[i] = tlbEntry{Unixtime: NullTime, Addr: -1}
	}
	return t, nil
}

// byteSize is sizeof(tlb): (NMax+1) * sizeof(tlb_entry).
func (t *TLB) byteSize() int { return (t.nMax + 1) * tlbEntrySize }

// Load reads sizeof(tlb) bytes from the configured backup medium into RAM.
// An all-0xFF medium (the state of unwritten flash, and of a freshly
// created FRAM simulation file) is interpreted as the empty TLB: every
// entry's Unixtime field already decodes to -1 (0xFFFFFFFF as int32), but
// the metadata counter at slot NMax is explicitly reset to 0 rather than
// left at its -1 bit pattern, since a cold boot has allocated nothing yet.
func (t *TLB) Load() error {
	buf := make([]byte, t.byteSize())
	var err error
	switch t.loc {
	case LocationFRAM:
		err = t.backend.FramRead(t.framAddr, buf)
	case LocationFlash:
		err = t.backend.FlashRead(t.flashAddr, buf)
	}
	if err != nil {
		return fmt.Errorf("flightplan: Load: %w", err)
	}

	allFF := true
	for _, b := range buf {
		if b != 0xFF {
			allFF = false
			break
		}
	}

	for i := range t.entries {
		off := i * tlbEntrySize
		t.entries[i] = tlbEntry{
			Unixtime: int32(binary.LittleEndian.Uint32(buf[off : off+4])),
			Addr:     int32(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
		}
	}
	if allFF {
		t.entries[t.nMax].Addr = 0
	}
	return nil
}

// Dump persists slot k back to the backup medium, or the whole table if
// k < 0. In FRAM mode this is a byte-granular write of just the affected
// slot(s). In flash mode the backing section is always erased and the
// entire table rewritten in page-sized chunks, since flash offers no
// partial in-place update; "persisting slot k" in flash mode therefore
// always persists the whole table, which trivially persists k too.
func (t *TLB) Dump(k int) error {
	switch t.loc {
	case LocationFRAM:
		if k < 0 {
			return t.dumpFRAMWhole()
		}
		return t.dumpFRAMSlot(k)
	case LocationFlash:
		return t.dumpFlashWhole()
	default:
		return fmt.Errorf("flightplan: Dump: unknown TLB location %d", t.loc)
	}
}

func (t *TLB) dumpFRAMSlot(k int) error {
	if k < 0 || k > t.nMax {
		return fmt.Errorf("flightplan: Dump: slot %d out of range [0,%d]", k, t.nMax)
	}
	var buf [tlbEntrySize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(t.entries[k].Unixtime))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(t.entries[k].Addr))
	addr := t.framAddr + uint64(k*tlbEntrySize)
	return t.backend.FramWrite(addr, buf[:])
}

func (t *TLB) dumpFRAMWhole() error {
	buf := t.serialize()
	return t.backend.FramWrite(t.framAddr, buf)
}

func (t *TLB) dumpFlashWhole() error {
	if err := t.backend.FlashErase(t.flashAddr); err != nil {
		return fmt.Errorf("flightplan: Dump: erasing TLB section: %w", err)
	}
	buf := t.serialize()
	for off := 0; off < len(buf); off += t.page {
		end := off + t.page
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[off:end]
		if len(chunk) < t.page {
			padded := make([]byte, t.page)
			copy(padded, chunk)
			for i := len(chunk); i < t.page; i++ {
				padded[i] = 0xFF
			}
			chunk = padded
		}
		if err := t.backend.FlashWrite(t.flashAddr+uint64(off), chunk); err != nil {
			return fmt.Errorf("flightplan: Dump: writing TLB page at offset %d: %w", off, err)
		}
	}
	return nil
}

func (t *TLB) serialize() []byte {
	buf := make([]byte, t.byteSize())
	for i, e := range t.entries {
		off := i * tlbEntrySize
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(e.Unixtime))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(e.Addr))
	}
	return buf
}

// FindIndex returns the lowest-indexed slot among [0, NMax) whose Unixtime
// matches unixtime, or -1 if none does. Passing NullTime finds the first
// free (tombstoned or never-used) slot. This is always a linear scan: the
// TLB is a scanned array, not a hash index.
func (t *TLB) FindIndex(unixtime int32) int {
	for k := 0; k < t.nMax; k++ {
		if t.entries[k].Unixtime == unixtime {
			return k
		}
	}
	return -1
}

// Update sets slot k to {unixtime, addr}, increments the append-cursor
// counter held in slot NMax, and persists both slots.
func (t *TLB) Update(k int, unixtime, addr int32) error {
	if k < 0 || k >= t.nMax {
		return fmt.Errorf("flightplan: Update: slot %d out of range [0,%d)", k, t.nMax)
	}
	t.entries[k] = tlbEntry{Unixtime: unixtime, Addr: addr}
	t.entries[t.nMax].Addr++
	if err := t.Dump(k); err != nil {
		return err
	}
	return t.Dump(t.nMax)
}

// EraseIndex tombstones slot k: sets it to {-1,-1} and persists it. It never
// touches the flight-plan flash data itself: the stale command bytes are
// only reclaimed later, during Engine.rebuild.
func (t *TLB) EraseIndex(k int) error {
	if k < 0 || k >= t.nMax {
		return fmt.Errorf("flightplan: EraseIndex: slot %d out of range [0,%d)", k, t.nMax)
	}
	t.entries[k] = tlbEntry{Unixtime: NullTime, Addr: -1}
	return t.Dump(k)
}

// Counter returns the current append-cursor value held in slot NMax.
func (t *TLB) Counter() int32 { return t.entries[t.nMax].Addr }

// setCounter is used only by Engine.rebuild, which recomputes the cursor from
// scratch while recompacting the live section.
func (t *TLB) setCounter(v int32) { t.entries[t.nMax].Addr = v }

// EntryAt exposes slot k's {unixtime, addr} pair, used by fp_get/fp_get_idx
// and by Engine.rebuild.
func (t *TLB) EntryAt(k int) (unixtime, addr int32, ok bool) {
	if k < 0 || k >= t.nMax {
		return 0, 0, false
	}
	e := t.entries[k]
	return e.Unixtime, e.Addr, true
}

// setAddr updates only the address half of a live slot, used by Engine.rebuild
// when it relocates an entry without changing its scheduled time.
func (t *TLB) setAddr(k int, addr int32) { t.entries[k].Addr = addr }

// NMax returns the configured maximum number of logical entries.
func (t *TLB) NMax() int { return t.nMax }

// Reset clears every slot to empty and the counter to zero, then persists
// the whole table. Used by fp_reset.
func (t *TLB) Reset() error {
	for i := range t.entries {
		t.entries[i] = tlbEntry{Unixtime: NullTime, Addr: -1}
	}
	t.entries[t.nMax].Addr = 0
	return t.Dump(-1)
}
