package documents

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m3rciful/petbot/core/config"
)

func TestDefaultsAreEmbedded(t *testing.T) {
	set := Defaults()
	if !strings.HasPrefix(set.Terms, "Terms of Service") {
		t.Fatalf("terms = %q", set.Terms)
	}
	if !strings.HasPrefix(set.Disclaimer, "Medical Disclaimer") {
		t.Fatalf("disclaimer = %q", set.Disclaimer)
	}
}

func TestLoadOverridesFromFiles(t *testing.T) {
	dir := t.TempDir()
	terms := filepath.Join(dir, "terms.txt")
	if err := os.WriteFile(terms, []byte("\n  Custom terms\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	set, err := Load(config.IntakeConfig{TermsPath: terms})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if set.Terms != "Custom terms" {
		t.Fatalf("terms = %q", set.Terms)
	}
	if set.Disclaimer != Defaults().Disclaimer {
		t.Fatal("disclaimer should keep the embedded default")
	}
}

func TestLoadRejectsMissingAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(config.IntakeConfig{DisclaimerPath: filepath.Join(dir, "nope.txt")}); err == nil {
		t.Fatal("expected error for missing file")
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("   "), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(config.IntakeConfig{TermsPath: empty}); err == nil {
		t.Fatal("expected error for empty file")
	}
}
