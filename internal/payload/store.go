package payload

import (
	"errors"
	"fmt"

	"github.com/xyproto/satstore/internal/addrmap"
	"github.com/xyproto/satstore/internal/media"
)

// Sentinel errors wrapped by Store's own checks, so callers (the façade)
// can classify a failure without string-matching. Errors that instead
// bubble up from the media backend are left unwrapped and treated as
// ordinary media failures.
var (
	// ErrBounds is wrapped when a payload id or sample index falls outside
	// its configured range.
	ErrBounds = errors.New("payload: index out of range")
	// ErrStraddle is wrapped when a record would cross a page boundary.
	ErrStraddle = errors.New("payload: record straddles a page boundary")
)

// Store holds, for each of P payloads, a contiguous run of K =
// SectionsPerPayload flash sections holding densely packed, fixed-size
// samples. Store itself does not track the next-free write index per
// payload: that counter is the façade's responsibility, so every call here
// takes the sample index i explicitly.
type Store struct {
	backend media.Backend
	page    int
	section int
	k       int // SectionsPerPayload
	p       int // NPayloads
	addr    []addrmap.FlashAddr
}

// NewStore validates P*K against the computed address map's section count
// and wires the store to it.
func NewStore(backend media.Backend, page, section, sectionsPerPayload, nPayloads int, payloadAddr []addrmap.FlashAddr) (*Store, error) {
	need := nPayloads * sectionsPerPayload
	if need > len(payloadAddr) {
		return nil, fmt.Errorf("payload: NewStore: P*K (%d) exceeds configured payload sections (%d)", need, len(payloadAddr))
	}
	if page <= 0 || section <= 0 || section%page != 0 {
		return nil, fmt.Errorf("payload: NewStore: invalid page/section geometry")
	}
	return &Store{
		backend: backend,
		page:    page,
		section: section,
		k:       sectionsPerPayload,
		p:       nPayloads,
		addr:    payloadAddr,
	}, nil
}

// address computes the flat flash address of sample i of payload p.
//
// samples_per_page (floor(PAGE/size)) only ever selects which section a
// sample falls in here; the intra-section offset is the dense stride
// (i mod samples_per_section) * size, not a further page-quantized term.
// A page-quantized offset can never straddle a page by construction, which
// would make the alignment check below dead code; the dense-stride form
// keeps that check live while still placing every evenly-dividing size (the
// common case) on clean page boundaries. See DESIGN.md for the full
// reasoning.
func (s *Store) address(p, i int, size int) (addrmap.FlashAddr, error) {
	if p < 0 || p >= s.p {
		return 0, fmt.Errorf("%w: payload id %d out of range [0,%d)", ErrBounds, p, s.p)
	}
	if size <= 0 || size > s.page {
		return 0, fmt.Errorf("%w: record size %d invalid for page %d", ErrBounds, size, s.page)
	}
	samplesPerPage := s.page / size
	pagesPerSection := s.section / s.page
	samplesPerSection := samplesPerPage * pagesPerSection
	if samplesPerSection <= 0 {
		return 0, fmt.Errorf("%w: record size %d leaves no room in a section", ErrBounds, size)
	}

	sectionIdx := p*s.k + i/samplesPerSection
	if sectionIdx < 0 || sectionIdx >= len(s.addr) {
		return 0, fmt.Errorf("%w: index %d of payload %d maps outside its %d reserved sections", ErrBounds, i, p, s.k)
	}
	base := s.addr[sectionIdx]

	offsetInSection := (i % samplesPerSection) * size
	addr := base + addrmap.FlashAddr(offsetInSection)
	if !addrmap.CheckPageAlignment(s.page, addr, size) {
		return 0, fmt.Errorf("%w: sample %d of payload %d (size %d)", ErrStraddle, i, p, size)
	}
	return addr, nil
}

// Set writes one sample of payload p at logical index i.
func (s *Store) Set(p, i int, data []byte, schema Schema) error {
	if len(data) != int(schema.Size) {
		return fmt.Errorf("%w: Set: data is %d bytes, schema size is %d", ErrBounds, len(data), schema.Size)
	}
	addr, err := s.address(p, i, int(schema.Size))
	if err != nil {
		return err
	}
	return s.backend.FlashWrite(uint64(addr), data)
}

// Get reads one sample of payload p at logical index i into buf.
func (s *Store) Get(p, i int, buf []byte, schema Schema) error {
	if len(buf) != int(schema.Size) {
		return fmt.Errorf("%w: Get: buf is %d bytes, schema size is %d", ErrBounds, len(buf), schema.Size)
	}
	addr, err := s.address(p, i, int(schema.Size))
	if err != nil {
		return err
	}
	return s.backend.FlashRead(uint64(addr), buf)
}

// ResetTable erases all K sections reserved for payload p.
func (s *Store) ResetTable(p int) error {
	if p < 0 || p >= s.p {
		return fmt.Errorf("payload: ResetTable: payload id %d out of range [0,%d)", p, s.p)
	}
	for j := 0; j < s.k; j++ {
		sectionIdx := p*s.k + j
		if err := s.backend.FlashErase(uint64(s.addr[sectionIdx])); err != nil {
			return fmt.Errorf("payload: ResetTable: erasing section %d of payload %d: %w", j, p, err)
		}
	}
	return nil
}

// Reset erases every payload's reserved sections.
func (s *Store) Reset() error {
	for p := 0; p < s.p; p++ {
		if err := s.ResetTable(p); err != nil {
			return err
		}
	}
	return nil
}

// NPayloads returns the configured number of payloads.
func (s *Store) NPayloads() int { return s.p }

// SectionsPerPayload returns K.
func (s *Store) SectionsPerPayload() int { return s.k }

// Capacity returns how many size-byte samples fit across a payload's K
// reserved sections: the point at which a ring-style append index wraps
// back to 0 rather than running off the end of its reserved flash.
func (s *Store) Capacity(size int) int {
	if size <= 0 || size > s.page {
		return 0
	}
	samplesPerPage := s.page / size
	pagesPerSection := s.section / s.page
	return samplesPerPage * pagesPerSection * s.k
}
