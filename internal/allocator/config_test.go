package allocator

import (
	"errors"
	"os"
	"testing"
)

func TestLoadTunablesDefaults(t *testing.T) {
	for _, name := range []string{"BIGMAAC_TEMPLATE", "BIGMAAC_MIN_FRY_SIZE", "BIGMAAC_MIN_BIGMAAC_SIZE", "SIZE_FRIES", "SIZE_BIGMAAC"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	tun, err := LoadTunables(4096)
	if err != nil {
		t.Fatalf("LoadTunables: %v", err)
	}

	if tun.Template != defaultTemplate {
		t.Errorf("Template = %q, want %q", tun.Template, defaultTemplate)
	}

	if tun.MinFrySize != defaultMinFrySize {
		t.Errorf("MinFrySize = %d, want %d", tun.MinFrySize, defaultMinFrySize)
	}

	if tun.FryRound != 4096 {
		t.Errorf("FryRound = %d, want the supplied page size 4096", tun.FryRound)
	}
}

func TestLoadTunablesReadsEnv(t *testing.T) {
	t.Setenv("BIGMAAC_MIN_FRY_SIZE", "2048")
	t.Setenv("BIGMAAC_MIN_BIGMAAC_SIZE", "4096")
	t.Setenv("SIZE_FRIES", "8192")
	t.Setenv("SIZE_BIGMAAC", "8192")

	tun, err := LoadTunables(4096)
	if err != nil {
		t.Fatalf("LoadTunables: %v", err)
	}

	if tun.MinFrySize != 2048 || tun.MinBigmaacSize != 4096 {
		t.Fatalf("got MinFrySize=%d MinBigmaacSize=%d, want 2048/4096", tun.MinFrySize, tun.MinBigmaacSize)
	}
}

func TestLoadTunablesRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("BIGMAAC_MIN_FRY_SIZE", "4096")
	t.Setenv("BIGMAAC_MIN_BIGMAAC_SIZE", "2048")
	t.Setenv("SIZE_FRIES", "8192")
	t.Setenv("SIZE_BIGMAAC", "8192")

	_, err := LoadTunables(4096)
	if !errors.Is(err, ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed for MinFrySize > MinBigmaacSize, got %v", err)
	}
}

func TestLoadTunablesRejectsSizesNotMultipleOfPageSize(t *testing.T) {
	t.Setenv("BIGMAAC_MIN_FRY_SIZE", "")
	t.Setenv("BIGMAAC_MIN_BIGMAAC_SIZE", "")
	t.Setenv("SIZE_FRIES", "100")
	t.Setenv("SIZE_BIGMAAC", "8192")

	_, err := LoadTunables(4096)
	if !errors.Is(err, ErrInitFailed) {
		t.Fatalf("expected ErrInitFailed for a SIZE_FRIES not a multiple of the page size, got %v", err)
	}
}

func TestLoadTunablesIgnoresUnparsableEnv(t *testing.T) {
	t.Setenv("SIZE_FRIES", "not-a-number")
	t.Setenv("SIZE_BIGMAAC", "8192")

	tun, err := LoadTunables(4096)
	if err != nil {
		t.Fatalf("LoadTunables: %v", err)
	}

	if tun.SizeFries != defaultSizeFries {
		t.Fatalf("expected an unparsable SIZE_FRIES to fall back to the default, got %d", tun.SizeFries)
	}
}
