package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare json untouched",
			input:    `{"mode": "none"}`,
			expected: `{"mode": "none"}`,
		},
		{
			name:     "plain fences",
			input:    "```\n{\"mode\": \"none\"}\n```",
			expected: `{"mode": "none"}`,
		},
		{
			name:     "json fences",
			input:    "```json\n{\"mode\": \"none\"}\n```",
			expected: `{"mode": "none"}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n{\"a\": 1}\n  ",
			expected: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.input))
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	result := RenderTemplate("Mensaje: {message}\nCarrito: {cart}", map[string]any{
		"message": "hola",
		"cart":    "vacío",
	})

	assert.Equal(t, "Mensaje: hola\nCarrito: vacío", result)
}

func TestRenderTemplate_MissingKeyLeftIntact(t *testing.T) {
	result := RenderTemplate("{a} y {b}", map[string]any{"a": 1})

	assert.Equal(t, "1 y {b}", result)
}
