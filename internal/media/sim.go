//go:build unix

package media

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// SimBackend is the hosted simulator: two fixed size byte arrays standing in
// for NOR flash and FRAM. On unix hosts these arrays are backed by
// golang.org/x/sys/unix.Mmap rather than plain slices, so a simulator backed
// by in-memory arrays can also survive an unexpected process restart when
// given on-disk paths. Passing empty paths falls back to an anonymous
// mapping, i.e. a genuine in-memory array, for ephemeral tests.
type SimBackend struct {
	geo Geometry

	flash     []byte
	flashFile *os.File

	fram     []byte
	framFile *os.File
}

// NewSimBackend creates a simulation backend. flashPath/framPath may be
// empty for an anonymous (non-persistent) mapping, or point at files that
// should back the media across process restarts.
func NewSimBackend(geo Geometry, flashPath, framPath string) (*SimBackend, error) {
	flash, flashFile, err := mapRegion(flashPath, geo.FlashSize)
	if err != nil {
		return nil, fmt.Errorf("media: mapping flash: %w", err)
	}
	fram, framFile, err := mapRegion(framPath, geo.FRAMSize)
	if err != nil {
		if flashFile != nil {
			unix.Munmap(flash)
			flashFile.Close()
		} else {
			unix.Munmap(flash)
		}
		return nil, fmt.Errorf("media: mapping fram: %w", err)
	}
	return &SimBackend{geo: geo, flash: flash, flashFile: flashFile, fram: fram, framFile: framFile}, nil
}

// mapRegion maps size bytes either anonymously (path == "") or backed by a
// file at path, creating and zero/0xFF-filling it if it does not yet exist
// or is the wrong size. Returns the mapped slice and, for file-backed
// regions, the open *os.File (nil for anonymous regions).
func mapRegion(path string, size int) ([]byte, *os.File, error) {
	if path == "" {
		b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			return nil, nil, err
		}
		eraseBytes(b)
		return b, nil, nil
	}

	fresh := false
	info, err := os.Stat(path)
	if err != nil || info.Size() != int64(size) {
		fresh = true
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, nil, err
	}

	b, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	if fresh {
		// Real NOR flash and fresh FRAM read as all-0xFF when erased/unwritten;
		// the TLB load path relies on this to recognize a cold boot.
		eraseBytes(b)
		unix.Msync(b, unix.MS_SYNC)
	}

	return b, f, nil
}

func eraseBytes(b []byte) {
	for i := range b {
		b[i] = 0xFF
	}
}

func (s *SimBackend) FlashRead(addr uint64, buf []byte) error {
	if int(addr)+len(buf) > len(s.flash) {
		return &ErrOutOfRange{Space: "flash", Addr: addr, Len: len(buf), Cap: len(s.flash)}
	}
	copy(buf, s.flash[addr:int(addr)+len(buf)])
	return nil
}

func (s *SimBackend) FlashWrite(addr uint64, buf []byte) error {
	if straddlesPage(s.geo.Page, addr, len(buf)) {
		return &ErrPageStraddle{Addr: addr, Len: len(buf), Page: s.geo.Page}
	}
	if int(addr)+len(buf) > len(s.flash) {
		return &ErrOutOfRange{Space: "flash", Addr: addr, Len: len(buf), Cap: len(s.flash)}
	}
	copy(s.flash[addr:int(addr)+len(buf)], buf)
	if s.flashFile != nil {
		unix.Msync(s.flash, unix.MS_SYNC)
	}
	return nil
}

func (s *SimBackend) FlashErase(sectionBase uint64) error {
	end := int(sectionBase) + s.geo.Section
	if end > len(s.flash) {
		return &ErrOutOfRange{Space: "flash", Addr: sectionBase, Len: s.geo.Section, Cap: len(s.flash)}
	}
	eraseBytes(s.flash[sectionBase:end])
	if s.flashFile != nil {
		unix.Msync(s.flash, unix.MS_SYNC)
	}
	return nil
}

func (s *SimBackend) FramRead(addr uint64, buf []byte) error {
	if int(addr)+len(buf) > len(s.fram) {
		return &ErrOutOfRange{Space: "fram", Addr: addr, Len: len(buf), Cap: len(s.fram)}
	}
	copy(buf, s.fram[addr:int(addr)+len(buf)])
	return nil
}

func (s *SimBackend) FramWrite(addr uint64, buf []byte) error {
	if int(addr)+len(buf) > len(s.fram) {
		return &ErrOutOfRange{Space: "fram", Addr: addr, Len: len(buf), Cap: len(s.fram)}
	}
	copy(s.fram[addr:int(addr)+len(buf)], buf)
	if s.framFile != nil {
		unix.Msync(s.fram, unix.MS_SYNC)
	}
	return nil
}

func (s *SimBackend) Close() error {
	var firstErr error
	if err := unix.Munmap(s.flash); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := unix.Munmap(s.fram); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.flashFile != nil {
		if err := s.flashFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.framFile != nil {
		if err := s.framFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
