package media

import (
	"path/filepath"
	"testing"
)

func testGeo() Geometry {
	return Geometry{Page: 512, Section: 4096, FlashSize: 4096 * 4, FRAMSize: 2048}
}

func TestSimBackendColdBootIsAllFF(t *testing.T) {
	b, err := NewSimBackend(testGeo(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	buf := make([]byte, 16)
	if err := b.FlashRead(0, buf); err != nil {
		t.Fatal(err)
	}
	for i, v := range buf {
		if v != 0xFF {
			t.Fatalf("flash[%d] = 0x%x, want 0xFF on cold boot", i, v)
		}
	}
}

func TestSimBackendWriteReadRoundTrip(t *testing.T) {
	b, err := NewSimBackend(testGeo(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	want := []byte("hello flash")
	if err := b.FlashWrite(0, want); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(want))
	if err := b.FlashRead(0, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSimBackendRejectsPageStraddle(t *testing.T) {
	b, err := NewSimBackend(testGeo(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	buf := make([]byte, 200)
	err = b.FlashWrite(400, buf) // 400..599 crosses the 512 boundary
	if err == nil {
		t.Fatal("expected page straddle error")
	}
	if _, ok := err.(*ErrPageStraddle); !ok {
		t.Errorf("got %T, want *ErrPageStraddle", err)
	}
}

func TestSimBackendEraseResetsToFF(t *testing.T) {
	b, err := NewSimBackend(testGeo(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := b.FlashWrite(0, []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := b.FlashErase(0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if err := b.FlashRead(0, buf); err != nil {
		t.Fatal(err)
	}
	for _, v := range buf {
		if v != 0xFF {
			t.Fatalf("expected 0xFF after erase, got 0x%x", v)
		}
	}
}

func TestSimBackendFilePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	flashPath := filepath.Join(dir, "flash.bin")
	framPath := filepath.Join(dir, "fram.bin")

	geo := testGeo()
	b1, err := NewSimBackend(geo, flashPath, framPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := b1.FramWrite(0, []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := b1.Close(); err != nil {
		t.Fatal(err)
	}

	b2, err := NewSimBackend(geo, flashPath, framPath)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()

	got := make([]byte, len("persisted"))
	if err := b2.FramRead(0, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "persisted" {
		t.Errorf("got %q after simulated reset, want %q", got, "persisted")
	}
}

func TestSimBackendOutOfRange(t *testing.T) {
	b, err := NewSimBackend(testGeo(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	buf := make([]byte, 16)
	err = b.FramRead(uint64(testGeo().FRAMSize), buf)
	if err == nil {
		t.Fatal("expected out of range error")
	}
	if _, ok := err.(*ErrOutOfRange); !ok {
		t.Errorf("got %T, want *ErrOutOfRange", err)
	}
}
