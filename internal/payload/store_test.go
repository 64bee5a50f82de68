package payload

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/xyproto/satstore/internal/addrmap"
	"github.com/xyproto/satstore/internal/media"
)

func newStoreBackend(t *testing.T, sectionSize, nSections int) (media.Backend, []addrmap.FlashAddr) {
	t.Helper()
	const page = 512
	b, err := media.NewSimBackend(media.Geometry{
		Page:      page,
		Section:   sectionSize,
		FlashSize: sectionSize * nSections,
		FRAMSize:  4096,
	}, "", "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })

	addrs := make([]addrmap.FlashAddr, nSections)
	for i := range addrs {
		addrs[i] = addrmap.FlashAddr(i * sectionSize)
	}
	return b, addrs
}

func TestStoreSetGetRoundTripEvenlyDividingSize(t *testing.T) {
	backend, addrs := newStoreBackend(t, 2048, 2) // one payload, K=2
	store, err := NewStore(backend, 512, 2048, 2, 1, addrs)
	if err != nil {
		t.Fatal(err)
	}
	schema := Schema{Size: 128, DataOrder: "%d"}
	for i := 0; i < 10; i++ {
		data := make([]byte, 128)
		binary.LittleEndian.PutUint32(data[0:4], uint32(int32(i*7)))
		if err := store.Set(0, i, data, schema); err != nil {
			t.Fatalf("Set(%d): %v", i, err)
		}
	}
	for i := 0; i < 10; i++ {
		buf := make([]byte, 128)
		if err := store.Get(0, i, buf, schema); err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		want := make([]byte, 128)
		binary.LittleEndian.PutUint32(want[0:4], uint32(int32(i*7)))
		if !bytes.Equal(buf, want) {
			t.Errorf("sample %d round trip mismatch", i)
		}
	}
}

// TestStorePageBoundaryScenario exercises the exact boundary case: PAGE=512,
// size=200: indexes 0 and 1 succeed, index 2 fails (it would occupy bytes
// 400-599, crossing 512), index 3 succeeds (landing in the next page).
func TestStorePageBoundaryScenario(t *testing.T) {
	backend, addrs := newStoreBackend(t, 2048, 1)
	store, err := NewStore(backend, 512, 2048, 1, 1, addrs)
	if err != nil {
		t.Fatal(err)
	}
	schema := Schema{Size: 200, DataOrder: "%d %d %d %s"} // 4+4+4+188 = 200

	data := make([]byte, 200)
	if err := store.Set(0, 0, data, schema); err != nil {
		t.Errorf("Set(0) should succeed: %v", err)
	}
	if err := store.Set(0, 1, data, schema); err != nil {
		t.Errorf("Set(1) should succeed: %v", err)
	}
	if err := store.Set(0, 2, data, schema); err == nil {
		t.Error("Set(2) should fail: record would straddle a page boundary")
	}
	if err := store.Set(0, 3, data, schema); err != nil {
		t.Errorf("Set(3) should succeed at the next page: %v", err)
	}
}

func TestStoreResetTableErasesPayload(t *testing.T) {
	backend, addrs := newStoreBackend(t, 2048, 2)
	store, err := NewStore(backend, 512, 2048, 2, 1, addrs)
	if err != nil {
		t.Fatal(err)
	}
	schema := Schema{Size: 128, DataOrder: "%d"}
	data := make([]byte, 128)
	binary.LittleEndian.PutUint32(data[0:4], uint32(int32(99)))
	if err := store.Set(0, 0, data, schema); err != nil {
		t.Fatal(err)
	}
	if err := store.ResetTable(0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 128)
	if err := store.Get(0, 0, buf, schema); err != nil {
		t.Fatal(err)
	}
	for _, b := range buf {
		if b != 0xFF {
			t.Fatalf("expected erased (0xFF) bytes after ResetTable, got %v", buf)
		}
	}
}

func TestStoreRejectsOversizedPayloadCount(t *testing.T) {
	backend, addrs := newStoreBackend(t, 2048, 1)
	if _, err := NewStore(backend, 512, 2048, 2, 1, addrs); err == nil {
		t.Error("expected error: P*K (2) exceeds configured sections (1)")
	}
}
