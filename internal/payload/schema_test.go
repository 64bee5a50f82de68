package payload

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestFprintMixedTokens(t *testing.T) {
	s := Schema{Size: 14, DataOrder: "%f %d %hi %s", VarNames: "temp count flag label"}
	buf := make([]byte, 14)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(3.5))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(-7)))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(int16(42)))
	copy(buf[10:14], "ab\x00\x00")

	var out bytes.Buffer
	if err := s.Fprint(&out, buf); err != nil {
		t.Fatal(err)
	}
	want := "3.5,-7,42,ab\n"
	if out.String() != want {
		t.Errorf("Fprint = %q, want %q", out.String(), want)
	}
}

func TestFprintRejectsWrongLength(t *testing.T) {
	s := Schema{Size: 8, DataOrder: "%d %d"}
	if err := s.Fprint(&bytes.Buffer{}, make([]byte, 4)); err == nil {
		t.Error("expected error for mismatched record length")
	}
}

func TestFprintRejectsUnknownToken(t *testing.T) {
	s := Schema{Size: 4, DataOrder: "%z"}
	if err := s.Fprint(&bytes.Buffer{}, make([]byte, 4)); err == nil {
		t.Error("expected error for unknown token")
	}
}

