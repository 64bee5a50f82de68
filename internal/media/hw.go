//go:build satstore_hw

package media

import "fmt"

// SPIFlash is the interface a vendor NOR-flash driver provides: page
// program, section erase, and read, all addressed with a byte offset: the
// shape an SPI NOR part
// such as those described in JEDEC command sets actually exposes (page
// program opcode 0x02, sector erase opcode 0xD8, read opcode 0x03).
// satstore does not ship a concrete implementation: flight software links
// this build against its own board support package.
type SPIFlash interface {
	ReadAt(addr uint32, buf []byte) error
	ProgramPage(addr uint32, buf []byte) error
	EraseSection(sectionBase uint32) error
}

// FRAMChip is the interface a vendor FRAM driver provides: byte-addressable
// read/write with no erase step, the way ferroelectric RAM actually behaves.
type FRAMChip interface {
	ReadAt(addr uint32, buf []byte) error
	WriteAt(addr uint32, buf []byte) error
}

// HWBackend implements Backend by delegating straight to the board's vendor
// drivers. It performs the same page-straddle check the simulation backend
// does, since a vendor driver is not expected to enforce it itself.
type HWBackend struct {
	geo   Geometry
	flash SPIFlash
	fram  FRAMChip
}

func NewHWBackend(geo Geometry, flash SPIFlash, fram FRAMChip) *HWBackend {
	return &HWBackend{geo: geo, flash: flash, fram: fram}
}

func (h *HWBackend) FlashRead(addr uint64, buf []byte) error {
	if err := h.flash.ReadAt(uint32(addr), buf); err != nil {
		return fmt.Errorf("media: flash read at 0x%x: %w", addr, err)
	}
	return nil
}

func (h *HWBackend) FlashWrite(addr uint64, buf []byte) error {
	if straddlesPage(h.geo.Page, addr, len(buf)) {
		return &ErrPageStraddle{Addr: addr, Len: len(buf), Page: h.geo.Page}
	}
	if err := h.flash.ProgramPage(uint32(addr), buf); err != nil {
		return fmt.Errorf("media: flash program at 0x%x: %w", addr, err)
	}
	return nil
}

func (h *HWBackend) FlashErase(sectionBase uint64) error {
	if err := h.flash.EraseSection(uint32(sectionBase)); err != nil {
		return fmt.Errorf("media: flash erase at 0x%x: %w", sectionBase, err)
	}
	return nil
}

func (h *HWBackend) FramRead(addr uint64, buf []byte) error {
	if err := h.fram.ReadAt(uint32(addr), buf); err != nil {
		return fmt.Errorf("media: fram read at 0x%x: %w", addr, err)
	}
	return nil
}

func (h *HWBackend) FramWrite(addr uint64, buf []byte) error {
	if err := h.fram.WriteAt(uint32(addr), buf); err != nil {
		return fmt.Errorf("media: fram write at 0x%x: %w", addr, err)
	}
	return nil
}

func (h *HWBackend) Close() error { return nil }
