package flightplan

import (
	"testing"

	"github.com/xyproto/satstore/internal/media"
)

func newTLBBackend(t *testing.T) media.Backend {
	t.Helper()
	b, err := media.NewSimBackend(media.Geometry{Page: 8, Section: 4096, FlashSize: 8192, FRAMSize: 4096}, "", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestTLBColdBootIsEmptyWithZeroCounter(t *testing.T) {
	tlb, err := New(newTLBBackend(t), 4, LocationFRAM, 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := tlb.Load(); err != nil {
		t.Fatal(err)
	}
	if tlb.Counter() != 0 {
		t.Errorf("cold boot counter = %d, want 0", tlb.Counter())
	}
	if k := tlb.FindIndex(100); k != -1 {
		t.Errorf("FindIndex on empty TLB = %d, want -1", k)
	}
}

func TestTLBUpdateAndFindIndex(t *testing.T) {
	tlb, err := New(newTLBBackend(t), 4, LocationFRAM, 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := tlb.Load(); err != nil {
		t.Fatal(err)
	}
	k := tlb.FindIndex(NullTime)
	if k != 0 {
		t.Fatalf("first free slot = %d, want 0", k)
	}
	if err := tlb.Update(k, 100, 40); err != nil {
		t.Fatal(err)
	}
	if tlb.Counter() != 1 {
		t.Errorf("counter after one Update = %d, want 1", tlb.Counter())
	}
	if got := tlb.FindIndex(100); got != 0 {
		t.Errorf("FindIndex(100) = %d, want 0", got)
	}
	unixtime, addr, ok := tlb.EntryAt(0)
	if !ok || unixtime != 100 || addr != 40 {
		t.Errorf("EntryAt(0) = (%d,%d,%v), want (100,40,true)", unixtime, addr, ok)
	}
}

func TestTLBEraseIndexTombstones(t *testing.T) {
	tlb, err := New(newTLBBackend(t), 4, LocationFRAM, 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := tlb.Load(); err != nil {
		t.Fatal(err)
	}
	k := tlb.FindIndex(NullTime)
	if err := tlb.Update(k, 100, 40); err != nil {
		t.Fatal(err)
	}
	if err := tlb.EraseIndex(k); err != nil {
		t.Fatal(err)
	}
	if got := tlb.FindIndex(100); got != -1 {
		t.Errorf("FindIndex after EraseIndex = %d, want -1", got)
	}
	// Counter is unaffected by a tombstone: it only ever grows on Update.
	if tlb.Counter() != 1 {
		t.Errorf("counter after EraseIndex = %d, want 1 (unchanged)", tlb.Counter())
	}
}

func TestTLBSurvivesReloadFRAM(t *testing.T) {
	backend := newTLBBackend(t)
	tlb, err := New(backend, 4, LocationFRAM, 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := tlb.Load(); err != nil {
		t.Fatal(err)
	}
	k := tlb.FindIndex(NullTime)
	if err := tlb.Update(k, 100, 40); err != nil {
		t.Fatal(err)
	}

	reloaded, err := New(backend, 4, LocationFRAM, 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if got := reloaded.FindIndex(100); got != 0 {
		t.Errorf("reloaded FindIndex(100) = %d, want 0", got)
	}
	if reloaded.Counter() != 1 {
		t.Errorf("reloaded counter = %d, want 1", reloaded.Counter())
	}
}

func TestTLBSurvivesReloadFlash(t *testing.T) {
	backend := newTLBBackend(t)
	tlb, err := New(backend, 4, LocationFlash, 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := tlb.Load(); err != nil {
		t.Fatal(err)
	}
	k := tlb.FindIndex(NullTime)
	if err := tlb.Update(k, 200, 80); err != nil {
		t.Fatal(err)
	}

	reloaded, err := New(backend, 4, LocationFlash, 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if got := reloaded.FindIndex(200); got != 0 {
		t.Errorf("reloaded (flash) FindIndex(200) = %d, want 0", got)
	}
}

func TestTLBResetClearsEverything(t *testing.T) {
	tlb, err := New(newTLBBackend(t), 4, LocationFRAM, 0, 0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := tlb.Load(); err != nil {
		t.Fatal(err)
	}
	k := tlb.FindIndex(NullTime)
	if err := tlb.Update(k, 100, 40); err != nil {
		t.Fatal(err)
	}
	if err := tlb.Reset(); err != nil {
		t.Fatal(err)
	}
	if tlb.Counter() != 0 {
		t.Errorf("counter after Reset = %d, want 0", tlb.Counter())
	}
	if got := tlb.FindIndex(100); got != -1 {
		t.Errorf("FindIndex after Reset = %d, want -1", got)
	}
}

func TestTLBRejectsPageNotMultipleOfEntrySize(t *testing.T) {
	backend := newTLBBackend(t)
	if _, err := New(backend, 4, LocationFlash, 0, 0, 5); err == nil {
		t.Error("expected error for page not a multiple of tlbEntrySize")
	}
}
