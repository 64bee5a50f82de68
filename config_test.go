package satstore

import (
	"os"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("Defaults() failed Validate: %v", err)
	}
}

func TestValidateRejectsSectionNotMultipleOfPage(t *testing.T) {
	cfg := Defaults()
	cfg.Section = 300
	cfg.Page = 512
	if err := cfg.Validate(); err == nil {
		t.Error("expected error: section not a multiple of page")
	}
}

func TestValidateRejectsZeroFPMaxEntries(t *testing.T) {
	cfg := Defaults()
	cfg.FPMaxEntries = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error: FPMaxEntries must be positive")
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	os.Setenv("SATSTORE_SECTION", "131072")
	os.Setenv("SATSTORE_FP_TLB_LOCATION", "FLASH")
	t.Cleanup(func() {
		os.Unsetenv("SATSTORE_SECTION")
		os.Unsetenv("SATSTORE_FP_TLB_LOCATION")
	})

	cfg := LoadFromEnv(Defaults())
	if cfg.Section != 131072 {
		t.Errorf("Section = %d, want 131072", cfg.Section)
	}
	if cfg.TLBLocation != TLBInFlash {
		t.Errorf("TLBLocation = %v, want TLBInFlash", cfg.TLBLocation)
	}
}

func TestLoadFromEnvFallsBackWhenUnset(t *testing.T) {
	os.Unsetenv("SATSTORE_PAGE")
	cfg := LoadFromEnv(Defaults())
	if cfg.Page != Defaults().Page {
		t.Errorf("Page = %d, want default %d", cfg.Page, Defaults().Page)
	}
}
