// Package payload implements schema-described, append-only per-payload
// sample buffers addressed by a fixed dense-stride formula, with every
// record checked against page boundaries.
package payload

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Schema is the record layout description for one payload type.
type Schema struct {
	// Size is the on-disk record size in bytes. Invariant: Size <= 512 and
	// Size*samplesPerPage must fit within one page without straddling.
	// Checked by Store on every Set/Get, not here, since it depends on PAGE.
	Size uint16
	// SysIndex names the status_table slot this payload's acquisition
	// cadence (or enable flag) is recorded under. Storage itself never
	// reads it; it is carried through for callers, matching the source
	// schema shape.
	SysIndex int
	// DataOrder is a whitespace-separated list of printf-style type tokens
	// describing the record's binary layout: %f (4-byte float), %d/%u/%i
	// (4-byte int), %hi (2-byte short), %s (fixed-size string, consuming
	// whatever bytes remain in Size after the other tokens are accounted
	// for).
	DataOrder string
	// VarNames is a whitespace-separated list of column names, one per
	// DataOrder token. Storage carries it for callers; Fprint writes only
	// the data line and emits no header.
	VarNames string
}

type token int

const (
	tokFloat token = iota
	tokInt
	tokShort
	tokString
)

func (t token) fixedWidth() (int, bool) {
	switch t {
	case tokFloat:
		return 4, true
	case tokInt:
		return 4, true
	case tokShort:
		return 2, true
	default:
		return 0, false
	}
}

func parseToken(raw string) (token, error) {
	switch strings.TrimPrefix(raw, "%") {
	case "f":
		return tokFloat, nil
	case "d", "u", "i":
		return tokInt, nil
	case "hi":
		return tokShort, nil
	case "s":
		return tokString, nil
	default:
		return 0, fmt.Errorf("payload: unknown data_order token %q", raw)
	}
}

// tokens parses DataOrder into its ordered token list.
func (s Schema) tokens() ([]token, error) {
	fields := strings.Fields(s.DataOrder)
	out := make([]token, 0, len(fields))
	for _, f := range fields {
		tok, err := parseToken(f)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// names splits VarNames on whitespace. A short or empty VarNames yields
// fewer names than tokens(); no placeholders are added.
func (s Schema) names() []string {
	return strings.Fields(s.VarNames)
}

// Fprint walks the schema's data order over data, emitting one CSV line to
// w. At most one %s token is permitted, at any position: it consumes every
// byte the fixed-width tokens didn't already account for.
func (s Schema) Fprint(w io.Writer, data []byte) error {
	toks, err := s.tokens()
	if err != nil {
		return err
	}
	if len(data) != int(s.Size) {
		return fmt.Errorf("payload: Fprint: record is %d bytes, schema size is %d", len(data), s.Size)
	}

	fixed := 0
	stringAt := -1
	for idx, tok := range toks {
		if w, ok := tok.fixedWidth(); ok {
			fixed += w
			continue
		}
		if stringAt != -1 {
			return fmt.Errorf("payload: Fprint: data_order has more than one %%s token")
		}
		stringAt = idx
	}
	stringWidth := int(s.Size) - fixed
	if stringAt != -1 && stringWidth < 0 {
		return fmt.Errorf("payload: Fprint: fixed-width tokens (%d bytes) exceed record size (%d)", fixed, s.Size)
	}
	if stringAt == -1 && fixed != int(s.Size) {
		return fmt.Errorf("payload: Fprint: fixed-width tokens (%d bytes) do not cover record size (%d)", fixed, s.Size)
	}

	fields := make([]string, 0, len(toks))
	off := 0
	for _, tok := range toks {
		switch tok {
		case tokFloat:
			bits := binary.LittleEndian.Uint32(data[off : off+4])
			fields = append(fields, strconv.FormatFloat(float64(math.Float32frombits(bits)), 'g', -1, 32))
			off += 4
		case tokInt:
			fields = append(fields, strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(data[off:off+4]))), 10))
			off += 4
		case tokShort:
			fields = append(fields, strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(data[off:off+2]))), 10))
			off += 2
		case tokString:
			fields = append(fields, fixedStringToGo(data[off:off+stringWidth]))
			off += stringWidth
		}
	}

	_, err = io.WriteString(w, strings.Join(fields, ",")+"\n")
	return err
}

func fixedStringToGo(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}

