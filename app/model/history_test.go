package model

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeMessages(n int) []ConversationMessage {
	messages := make([]ConversationMessage, 0, n)
	for i := 1; i <= n; i++ {
		messages = append(messages, ConversationMessage{
			Timestamp: fmt.Sprintf("2026-08-29T10:%02d:00Z", i),
			Sender:    "client",
			Text:      fmt.Sprintf("mensaje %d", i),
		})
	}
	return messages
}

func TestWeightedTranscript_Empty(t *testing.T) {
	assert.Equal(t, "Sin mensajes previos en esta conversación.", WeightedTranscript(nil))
}

func TestWeightedTranscript_NewestFirstHighWeight(t *testing.T) {
	transcript := WeightedTranscript(makeMessages(5))

	lines := strings.Split(strings.TrimRight(transcript, "\n"), "\n")
	require.Len(t, lines, 5)

	// The newest message leads and every turn fits the high-weight window.
	assert.Equal(t, "[Peso ALTO] Cliente: mensaje 5", lines[0])
	assert.Equal(t, "[Peso ALTO] Cliente: mensaje 1", lines[4])
}

func TestWeightedTranscript_Buckets(t *testing.T) {
	transcript := WeightedTranscript(makeMessages(25))

	lines := strings.Split(strings.TrimRight(transcript, "\n"), "\n")
	require.Len(t, lines, 21)

	assert.True(t, strings.HasPrefix(lines[0], "[Peso ALTO] "))
	assert.True(t, strings.HasPrefix(lines[9], "[Peso ALTO] "))
	assert.True(t, strings.HasPrefix(lines[10], "[Peso MEDIO] "))
	assert.True(t, strings.HasPrefix(lines[19], "[Peso MEDIO] "))
	assert.Equal(t, "[Peso BAJO: contexto histórico] ... (5 mensajes anteriores)", lines[20])
}

func TestWeightedTranscript_SenderMapping(t *testing.T) {
	transcript := WeightedTranscript([]ConversationMessage{
		{Sender: "client", Text: "hola"},
		{Sender: "cedamoney", Text: "buenas"},
	})

	assert.Contains(t, transcript, "Asistente: buenas")
	assert.Contains(t, transcript, "Cliente: hola")
}

func TestFormatRecent(t *testing.T) {
	assert.Equal(t, "No hay productos recientes asociados a esta conversación.", FormatRecent(nil))

	entries := []RecentProduct{
		{Position: 1, Product: Product{Name: "Blusa Mia", Color: "Rojo", Type: "Blusa", Category: "Ropa Dama", PriceMXN: 349.9}},
	}
	assert.Equal(t, "Producto 1: Blusa Mia (Rojo) - Blusa / Ropa Dama - $349.90 MXN\n", FormatRecent(entries))
}

func TestFormatCart(t *testing.T) {
	assert.Equal(t, "El carrito está vacío.", FormatCart(nil))

	lines := []CartLine{
		{ArticleID: "a1", Name: "Jeans Slim", Color: "Azul", Type: "Jeans", Category: "Ropa Caballero", PriceMXN: 599, Quantity: 2},
	}
	assert.Equal(t, "Producto 1 [id=a1]: Jeans Slim (Azul) - Jeans / Ropa Caballero - $599.00 MXN x2\n", FormatCart(lines))
}

func TestCartTotal(t *testing.T) {
	lines := []CartLine{
		{PriceMXN: 100, Quantity: 2},
		{PriceMXN: 49.5, Quantity: 1},
	}
	assert.InDelta(t, 249.5, CartTotal(lines), 0.001)
}
