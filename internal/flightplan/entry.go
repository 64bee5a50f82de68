// Package flightplan implements the flight-plan TLB and the
// deferred-command engine built on top of it.
package flightplan

import (
	"encoding/binary"
	"fmt"
)

const (
	// CmdMaxLen is the fixed, null-padded size of an entry's command string.
	CmdMaxLen = 248
	// ArgsMaxLen is the fixed, null-padded size of an entry's argument string.
	ArgsMaxLen = 248
	// EntrySize is sizeof(fp_entry) on disk: 4 int32 fields (16 bytes) plus
	// the two 248-byte string fields. Required to be exactly 512 bytes so
	// one entry occupies exactly one flash page.
	EntrySize = 4*4 + CmdMaxLen + ArgsMaxLen

	// NullTime is the sentinel unixtime marking an empty slot (FP_NULL).
	NullTime int32 = -1
)

func init() {
	if EntrySize != 512 {
		panic(fmt.Sprintf("flightplan: sizeof(fp_entry) = %d, must be exactly 512", EntrySize))
	}
}

// Entry is a single deferred-command record.
type Entry struct {
	Unixtime   int32
	Executions int32
	Periodical int32
	Node       int32
	Cmd        string
	Args       string
}

// Empty reports whether this entry is the sentinel empty slot.
func (e Entry) Empty() bool { return e.Unixtime == NullTime }

// Marshal serializes e into its 512-byte little-endian on-disk layout:
// i32 unixtime; i32 executions; i32 periodical; i32 node; u8 cmd[248]; u8 args[248].
// Strings longer than their field are truncated; all bytes past a string's
// terminator (including any truncation) are written as zero, never left
// undefined.
func (e Entry) Marshal() [EntrySize]byte {
	var buf [EntrySize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.Unixtime))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(e.Executions))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.Periodical))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(e.Node))
	putFixedString(buf[16:16+CmdMaxLen], e.Cmd)
	putFixedString(buf[16+CmdMaxLen:16+CmdMaxLen+ArgsMaxLen], e.Args)
	return buf
}

// Unmarshal decodes a 512-byte buffer into an Entry. Bytes after the first
// NUL in a string field are ignored; trailing bytes after a NUL are
// undefined on read.
func Unmarshal(buf []byte) (Entry, error) {
	if len(buf) != EntrySize {
		return Entry{}, fmt.Errorf("flightplan: Unmarshal: need %d bytes, got %d", EntrySize, len(buf))
	}
	var e Entry
	e.Unixtime = int32(binary.LittleEndian.Uint32(buf[0:4]))
	e.Executions = int32(binary.LittleEndian.Uint32(buf[4:8]))
	e.Periodical = int32(binary.LittleEndian.Uint32(buf[8:12]))
	e.Node = int32(binary.LittleEndian.Uint32(buf[12:16]))
	e.Cmd = fixedStringToGo(buf[16 : 16+CmdMaxLen])
	e.Args = fixedStringToGo(buf[16+CmdMaxLen : 16+CmdMaxLen+ArgsMaxLen])
	return e, nil
}

func putFixedString(dst []byte, s string) {
	n := copy(dst, s)
	if n > len(dst) {
		n = len(dst)
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func fixedStringToGo(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}
