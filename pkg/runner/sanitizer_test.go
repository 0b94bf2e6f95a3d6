package runner_test

import (
	"strings"
	"testing"

	"github.com/ravituringworks/agency/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInput_SizeLimit(t *testing.T) {
	t.Setenv(runner.EnvMaxInputSize, "8")

	_, err := runner.SanitizeInput(strings.Repeat("a", 8))
	assert.NoError(t, err)

	_, err = runner.SanitizeInput(strings.Repeat("a", 9))
	assert.ErrorIs(t, err, runner.ErrInputTooLarge)
}

func TestSanitizeInput_ControlChars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"keeps newline and tab", "a\nb\tc", "a\nb\tc"},
		{"strips ansi escape", "\x1b[31mred\x1b[0m", "[31mred[0m"},
		{"strips null and bell", "a\x00b\x07c", "abc"},
		{"trims", "  hi  \n", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runner.SanitizeInput(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeInput_Rejects(t *testing.T) {
	_, err := runner.SanitizeInput("bad \xff utf8")
	assert.ErrorIs(t, err, runner.ErrInvalidUTF8)

	_, err = runner.SanitizeInput(" \x00 ")
	assert.ErrorIs(t, err, runner.ErrEmptyInput)
}
