package satstore

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

// StorageMode selects the backing implementation for storage_init. Only
// ModeFlash is implemented by this package; the other two are named for
// completeness of the configuration surface.
type StorageMode int

const (
	ModeRAM StorageMode = iota
	ModeFlash
	ModeSQL
)

func (m StorageMode) String() string {
	switch m {
	case ModeRAM:
		return "RAM"
	case ModeFlash:
		return "FLASH"
	case ModeSQL:
		return "SQL"
	default:
		return "unknown"
	}
}

// TLBLocation selects where the flight-plan TLB is backed up.
type TLBLocation int

const (
	TLBInFRAM TLBLocation = iota
	TLBInFlash
)

func (l TLBLocation) String() string {
	if l == TLBInFlash {
		return "FLASH"
	}
	return "FRAM"
}

// Config holds every compile-time knob the storage core needs. Flight
// software links against Defaults() directly; the simulator binary and
// integration tests may override individual fields from the environment via
// LoadFromEnv, so the address map can be resized without recompiling.
type Config struct {
	Mode        StorageMode
	TripleWrite bool
	TLBLocation TLBLocation

	Section int // flash erase-section size, default 262144
	Page    int // flash write-page size, default 512
	FRAMSize int // total FRAM capacity in bytes, default 32768

	FPMaxEntries       int   // N_max
	SectionsPerPayload int   // K
	NPayloads          int   // P
	FlashInit          int64 // base flash byte address
}

// Defaults returns the reference configuration used by the flight build:
// triple-redundant status table, TLB backed up to FRAM, a 256 KiB section, a
// 512-byte page, and a 32 KiB FRAM.
func Defaults() Config {
	return Config{
		Mode:               ModeFlash,
		TripleWrite:        true,
		TLBLocation:        TLBInFRAM,
		Section:            262144,
		Page:               512,
		FRAMSize:           32768,
		FPMaxEntries:       64,
		SectionsPerPayload: 4,
		NPayloads:          8,
		FlashInit:          0,
	}
}

// LoadFromEnv overlays cfg with any SATSTORE_* environment variables that are
// set, falling back to cfg's existing value (normally Defaults()) for
// anything unset.
func LoadFromEnv(cfg Config) Config {
	if _, ok := os.LookupEnv("SATSTORE_TRIPLE_WR"); ok {
		cfg.TripleWrite = env.Bool("SATSTORE_TRIPLE_WR")
	}
	cfg.Section = env.Int("SATSTORE_SECTION", cfg.Section)
	cfg.Page = env.Int("SATSTORE_PAGE", cfg.Page)
	cfg.FRAMSize = env.Int("SATSTORE_FRAM_SIZE", cfg.FRAMSize)
	cfg.FPMaxEntries = env.Int("SATSTORE_FP_MAX_ENTRIES", cfg.FPMaxEntries)
	cfg.SectionsPerPayload = env.Int("SATSTORE_SECTIONS_PER_PAYLOAD", cfg.SectionsPerPayload)
	cfg.NPayloads = env.Int("SATSTORE_N_PAYLOADS", cfg.NPayloads)
	cfg.FlashInit = int64(env.Int("SATSTORE_FLASH_INIT", int(cfg.FlashInit)))

	if loc := env.Str("SATSTORE_FP_TLB_LOCATION", cfg.TLBLocation.String()); loc == "FLASH" {
		cfg.TLBLocation = TLBInFlash
	} else {
		cfg.TLBLocation = TLBInFRAM
	}
	return cfg
}

// Validate checks the invariants the address map relies on: page must
// divide section, and the TLB entry layout must tile the page (asserted
// again in internal/flightplan, but caught here first for a clearer error).
func (c Config) Validate() error {
	if c.Page <= 0 || c.Section <= 0 {
		return fmt.Errorf("config: page and section must be positive, got page=%d section=%d", c.Page, c.Section)
	}
	if c.Section%c.Page != 0 {
		return fmt.Errorf("config: section (%d) must be a whole multiple of page (%d)", c.Section, c.Page)
	}
	if c.Page%8 != 0 {
		return fmt.Errorf("config: page (%d) must be a whole multiple of the 8-byte TLB entry", c.Page)
	}
	if c.FPMaxEntries <= 0 {
		return fmt.Errorf("config: FPMaxEntries must be positive, got %d", c.FPMaxEntries)
	}
	if c.NPayloads < 0 || c.SectionsPerPayload < 0 {
		return fmt.Errorf("config: NPayloads and SectionsPerPayload must be non-negative")
	}
	return nil
}
