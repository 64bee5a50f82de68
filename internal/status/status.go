// Package status implements a fixed-index array of 32-bit values held in
// FRAM, optionally triple-written for voting (TMR) so a single-bit upset in
// one copy does not corrupt a read.
package status

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xyproto/satstore/internal/media"
)

// Value32 is a 32-bit value reinterpreted as integer or float depending on
// how the caller accesses it: a tagged union by access, not by stored
// discriminator, since the bits never carry a type tag.
type Value32 struct {
	bits uint32
}

func NewInt32(v int32) Value32   { return Value32{bits: uint32(v)} }
func NewUint32(v uint32) Value32 { return Value32{bits: v} }
func NewFloat32(v float32) Value32 {
	return Value32{bits: math.Float32bits(v)}
}

func (v Value32) Int32() int32     { return int32(v.bits) }
func (v Value32) Uint32() uint32   { return v.bits }
func (v Value32) Float32() float32 { return math.Float32frombits(v.bits) }

// Table is the status_table component: N_vars logical slots, optionally
// triple-written for TMR, backed by FRAM through a media.Backend.
type Table struct {
	backend  media.Backend
	baseAddr uint64
	nVars    int
	triple   bool
}

// NewTable creates a status table of nVars logical variables starting at
// baseAddr in FRAM. When triple is true the physical layout is three
// consecutive copies of length nVars.
func NewTable(backend media.Backend, baseAddr uint64, nVars int, triple bool) *Table {
	return &Table{backend: backend, baseAddr: baseAddr, nVars: nVars, triple: triple}
}

// ByteSize is the total FRAM footprint of the table: one or three copies of
// nVars 32-bit values.
func (t *Table) ByteSize() int {
	copies := 1
	if t.triple {
		copies = 3
	}
	return copies * t.nVars * 4
}

// Init validates the table can be addressed and, if drop is true, writes
// every variable's default value (all copies, when triple-redundant).
// drop is advisory in FRAM mode: by default values survive a reset, so
// callers pass drop=false on a warm boot and drop=true only when they want
// to force every variable back to its default (e.g. first-ever boot,
// detected by the caller via some other means: status itself has no way to
// tell a cold FRAM from a warm one beyond what the caller already knows).
func (t *Table) Init(defaults []Value32, drop bool) error {
	if len(defaults) != t.nVars {
		return fmt.Errorf("status: Init: %d defaults for %d variables", len(defaults), t.nVars)
	}
	if !drop {
		return nil
	}
	for i, v := range defaults {
		if err := t.Set(i, v); err != nil {
			return fmt.Errorf("status: Init: setting default for index %d: %w", i, err)
		}
	}
	return nil
}

func (t *Table) copyAddr(index, copyNum int) uint64 {
	return t.baseAddr + uint64((copyNum*t.nVars+index)*4)
}

func (t *Table) readCopy(index, copyNum int) (Value32, error) {
	var buf [4]byte
	if err := t.backend.FramRead(t.copyAddr(index, copyNum), buf[:]); err != nil {
		return Value32{}, err
	}
	return Value32{bits: binary.LittleEndian.Uint32(buf[:])}, nil
}

func (t *Table) writeCopy(index, copyNum int, v Value32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v.bits)
	return t.backend.FramWrite(t.copyAddr(index, copyNum), buf[:])
}

// ErrVotingDisagreement is returned (alongside the best-effort value, copy 1)
// when all three copies of a triple-written variable disagree. This must
// not abort the call: the caller gets a value back and an error to log.
type ErrVotingDisagreement struct {
	Index int
}

func (e *ErrVotingDisagreement) Error() string {
	return fmt.Sprintf("status: index %d: all three copies disagree, result undefined", e.Index)
}

// Get reads the logical value at index. In triple-redundant mode it reads
// all three physical copies and returns the majority: v1 if v1==v2 or
// v1==v3, else v2 if v2==v3, else v1 with ErrVotingDisagreement.
func (t *Table) Get(index int) (Value32, error) {
	if index < 0 || index >= t.nVars {
		return Value32{}, fmt.Errorf("status: Get: index %d out of range [0,%d)", index, t.nVars)
	}
	v1, err := t.readCopy(index, 0)
	if err != nil {
		return Value32{}, err
	}
	if !t.triple {
		return v1, nil
	}
	v2, err := t.readCopy(index, 1)
	if err != nil {
		return Value32{}, err
	}
	v3, err := t.readCopy(index, 2)
	if err != nil {
		return Value32{}, err
	}
	switch {
	case v1.bits == v2.bits || v1.bits == v3.bits:
		return v1, nil
	case v2.bits == v3.bits:
		return v2, nil
	default:
		return v1, &ErrVotingDisagreement{Index: index}
	}
}

// Set writes the logical value at index. In triple-redundant mode all three
// physical copies are written; the first write error aborts the remaining
// copies and is returned (the invariant "all three copies hold the same
// value after any successful write" only needs to hold after success).
func (t *Table) Set(index int, v Value32) error {
	if index < 0 || index >= t.nVars {
		return fmt.Errorf("status: Set: index %d out of range [0,%d)", index, t.nVars)
	}
	copies := 1
	if t.triple {
		copies = 3
	}
	for c := 0; c < copies; c++ {
		if err := t.writeCopy(index, c, v); err != nil {
			return err
		}
	}
	return nil
}
