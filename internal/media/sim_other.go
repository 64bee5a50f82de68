//go:build !unix

package media

import "fmt"

// SimBackend is the non-unix fallback: plain in-process byte slices, with no
// mmap-backed persistence. See sim.go for the unix variant, which is the one
// satstore's durability story actually relies on.
type SimBackend struct {
	geo   Geometry
	flash []byte
	fram  []byte
}

func NewSimBackend(geo Geometry, flashPath, framPath string) (*SimBackend, error) {
	if flashPath != "" || framPath != "" {
		return nil, fmt.Errorf("media: file-backed simulation requires a unix host")
	}
	flash := make([]byte, geo.FlashSize)
	fram := make([]byte, geo.FRAMSize)
	eraseBytes(flash)
	eraseBytes(fram)
	return &SimBackend{geo: geo, flash: flash, fram: fram}, nil
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
	return nil
}

func (s *SimBackend) FlashErase(sectionBase uint64) error {
	end := int(sectionBase) + s.geo.Section
	if end > len(s.flash) {
		return &ErrOutOfRange{Space: "flash", Addr: sectionBase, Len: s.geo.Section, Cap: len(s.flash)}
	}
	eraseBytes(s.flash[sectionBase:end])
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
	return nil
}

func (s *SimBackend) Close() error { return nil }
