// Package satstore is the persistent storage core of the flight-software
// stack: a triple-redundant status table, a flight-plan command queue
// backed by a translation look-aside buffer, and a schema-driven payload
// sample store, all addressed from one static flash/FRAM partition plan and
// reachable through a single mutex-guarded façade (Repository).
package satstore

import (
	"fmt"

	"github.com/xyproto/satstore/internal/addrmap"
	"github.com/xyproto/satstore/internal/flightplan"
	"github.com/xyproto/satstore/internal/media"
	"github.com/xyproto/satstore/internal/payload"
	"github.com/xyproto/satstore/internal/status"
)

// PayloadSchema mirrors payload.Schema at the package boundary so callers
// never need to import internal/payload directly.
type PayloadSchema = payload.Schema

// Entry mirrors flightplan.Entry at the package boundary.
type Entry = flightplan.Entry

// NullTime is the flight-plan sentinel unixtime marking an empty slot.
const NullTime = flightplan.NullTime

// Value32 mirrors status.Value32 at the package boundary.
type Value32 = status.Value32

// NewInt32, NewUint32, and NewFloat32 construct a Value32 for StatusSet
// without requiring callers to import internal/status directly.
func NewInt32(v int32) Value32     { return status.NewInt32(v) }
func NewUint32(v uint32) Value32   { return status.NewUint32(v) }
func NewFloat32(v float32) Value32 { return status.NewFloat32(v) }

// descriptor bundles every live component storage_init wires together. It
// is intentionally unexported: the façade in repository.go is the only
// thing that ever touches it, one field read/write at a time, under its
// mutex.
type descriptor struct {
	cfg     Config
	backend media.Backend
	amap    *addrmap.Map

	status *status.Table
	tlb    *flightplan.TLB
	fp     *flightplan.Engine
	pay    *payload.Store

	schemas []PayloadSchema
	log     *Logger
}

// Open is storage_init: it computes the address map and wires up the status
// table, flight-plan engine, and payload store against the caller-supplied
// media backend. statusVars is the number of status-table slots to
// reserve; schemas describes every payload this instance will serve; drop
// forces a factory reset of the flight plan and every payload's flash
// sections rather than a warm-boot reload.
func Open(cfg Config, backend media.Backend, statusVars int, schemas []PayloadSchema, drop bool, log *Logger) (*Repository, error) {
	if log == nil {
		log = DefaultLogger
	}
	if err := cfg.Validate(); err != nil {
		return nil, newErr("storage_init", CategoryBounds, err)
	}

	amap, err := addrmap.Compute(addrmap.Params{
		FlashInit:          cfg.FlashInit,
		Section:            cfg.Section,
		Page:               cfg.Page,
		FPMaxEntries:       cfg.FPMaxEntries,
		FPEntrySize:        flightplan.EntrySize,
		SectionsPerPayload: cfg.SectionsPerPayload,
		NPayloads:          cfg.NPayloads,
	})
	if err != nil {
		return nil, newErr("storage_init", CategoryBounds, err)
	}

	statusTable := status.NewTable(backend, 0, statusVars, cfg.TripleWrite)

	var tlbFramAddr, tlbFlashAddr uint64
	loc := flightplan.LocationFRAM
	if cfg.TLBLocation == TLBInFlash {
		loc = flightplan.LocationFlash
		tlbFlashAddr = uint64(amap.TLBBase)
	} else {
		tlbFramAddr = uint64(addrmap.TLBFramAddr(cfg.FRAMSize, (cfg.FPMaxEntries+1)*8))
	}
	tlb, err := flightplan.New(backend, cfg.FPMaxEntries, loc, tlbFramAddr, tlbFlashAddr, cfg.Page)
	if err != nil {
		return nil, newErr("storage_init", CategoryBounds, err)
	}

	fp, err := flightplan.NewEngine(backend, tlb, uint64(amap.FPBase), cfg.Page, cfg.Section, amap.FPSections)
	if err != nil {
		return nil, newErr("storage_init", CategoryBounds, err)
	}
	if err := fp.Init(drop); err != nil {
		return nil, newErr("storage_init", CategoryMedia, err)
	}

	pay, err := payload.NewStore(backend, cfg.Page, cfg.Section, cfg.SectionsPerPayload, cfg.NPayloads, amap.PayloadAddr)
	if err != nil {
		return nil, newErr("storage_init", CategoryBounds, err)
	}
	if drop {
		if err := pay.Reset(); err != nil {
			return nil, newErr("storage_init", CategoryMedia, err)
		}
	}

	desc := &descriptor{
		cfg:     cfg,
		backend: backend,
		amap:    amap,
		status:  statusTable,
		tlb:     tlb,
		fp:      fp,
		pay:     pay,
		schemas: schemas,
		log:     log,
	}
	log.Verbosef("storage_init: opened (mode=%s, N_vars=%d, P=%d, K=%d)", cfg.Mode, statusVars, cfg.NPayloads, cfg.SectionsPerPayload)
	return newRepository(desc), nil
}

// schemaFor looks up the schema registered for payload p at Open time.
func (d *descriptor) schemaFor(p int) (PayloadSchema, error) {
	if p < 0 || p >= len(d.schemas) {
		return PayloadSchema{}, fmt.Errorf("storage: payload id %d has no registered schema", p)
	}
	return d.schemas[p], nil
}
