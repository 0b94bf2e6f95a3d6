// Package tui holds terminal presentation helpers for the interactive chat.
package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/runner"
	"gopkg.in/yaml.v3"
)

// NewRenderer renders assistant replies as markdown for the terminal,
// picking a light or dark style from the background.
func NewRenderer(wordWrap int) (runner.ContentRenderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render, nil
}

// WriteLedger writes the ledger as YAML.
func WriteLedger(w io.Writer, ledger *domain.TransactionLedger) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ledger); err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	return enc.Close()
}
