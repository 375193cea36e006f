package model

import (
	"fmt"
	"strings"
)

const (
	// Newest turns dominate classification; middle turns keep some weight;
	// anything older is collapsed to a count.
	highWeightTurns   = 10
	mediumWeightTurns = 20
)

// ConversationMessage is one turn of the conversation, newest-last as fetched
// from the transport.
type ConversationMessage struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// WeightedTranscript renders a conversation tail for oracle prompts. The
// newest turns are labeled with high weight, turns up to the medium bound with
// medium weight, and the rest is summarized to a count line.
func WeightedTranscript(messages []ConversationMessage) string {
	if len(messages) == 0 {
		return "Sin mensajes previos en esta conversación."
	}

	// Newest first.
	reversed := make([]ConversationMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		reversed = append(reversed, messages[i])
	}

	var builder strings.Builder

	for i, msg := range reversed {
		if i >= mediumWeightTurns {
			builder.WriteString(fmt.Sprintf("[Peso BAJO: contexto histórico] ... (%d mensajes anteriores)\n",
				len(reversed)-mediumWeightTurns))
			break
		}

		label := "ALTO"
		if i >= highWeightTurns {
			label = "MEDIO"
		}

		sender := "Cliente"
		if msg.Sender != "client" {
			sender = "Asistente"
		}

		builder.WriteString(fmt.Sprintf("[Peso %s] %s: %s\n", label, sender, msg.Text))
	}

	return builder.String()
}
