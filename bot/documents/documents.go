// Package documents provides the consent documents shown before intake.
package documents

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/m3rciful/petbot/core/config"
)

var (
	//go:embed terms.md
	defaultTerms string
	//go:embed disclaimer.md
	defaultDisclaimer string
)

// Set holds the bodies of both consent documents.
type Set struct {
	Terms      string
	Disclaimer string
}

// Defaults returns the embedded documents.
func Defaults() Set {
	return Set{
		Terms:      strings.TrimSpace(defaultTerms),
		Disclaimer: strings.TrimSpace(defaultDisclaimer),
	}
}

// Load reads the configured files; an empty path keeps the embedded default.
func Load(cfg config.IntakeConfig) (Set, error) {
	set := Defaults()
	if cfg.TermsPath != "" {
		body, err := readBody(cfg.TermsPath)
		if err != nil {
			return Set{}, fmt.Errorf("terms: %w", err)
		}
		set.Terms = body
	}
	if cfg.DisclaimerPath != "" {
		body, err := readBody(cfg.DisclaimerPath)
		if err != nil {
			return Set{}, fmt.Errorf("disclaimer: %w", err)
		}
		set.Disclaimer = body
	}
	return set, nil
}

func readBody(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return body, nil
}
