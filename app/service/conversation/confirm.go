package conversation

import (
	"context"
	"log/slog"
	"strings"

	"cedabot/app/service/executor"
	"cedabot/app/service/pending"
)

var affirmations = map[string]bool{
	"si":           true,
	"sí":           true,
	"sip":          true,
	"claro":        true,
	"ok":           true,
	"okay":         true,
	"dale":         true,
	"va":           true,
	"confirmo":     true,
	"confirmado":   true,
	"correcto":     true,
	"de acuerdo":   true,
	"si por favor": true,
	"sí por favor": true,
	"hazlo":        true,
	"adelante":     true,
	"yes":          true,
}

var negations = map[string]bool{
	"no":         true,
	"nop":        true,
	"cancela":    true,
	"cancelar":   true,
	"cancelalo":  true,
	"cancélalo":  true,
	"mejor no":   true,
	"no gracias": true,
	"dejalo asi": true,
	"déjalo así": true,
	"olvidalo":   true,
	"olvídalo":   true,
}

func normalizePhrase(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(text, ".,!¡¿? ")
}

// IsAffirmation reports whether the message is a bare yes-like confirmation.
// Anything longer than a short phrase is treated as a new request, not an
// answer to the pending prompt.
func IsAffirmation(text string) bool {
	return affirmations[normalizePhrase(text)]
}

// IsNegation reports whether the message declines the pending action.
func IsNegation(text string) bool {
	return negations[normalizePhrase(text)]
}

// handlePending consumes any pending action for the conversation. An
// affirmation replays the stored plan exactly as gated; a negation discards
// it; any other message discards it and falls through to the normal pipeline.
// Returns true when the turn was fully handled here.
func (s *Service) handlePending(ctx context.Context, conversationID, message string) bool {
	action, err := s.pendingSvc.Take(ctx, conversationID)
	if err != nil {
		slog.Error("Failed to take pending action",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
		return false
	}
	if action == nil {
		return false
	}

	if IsNegation(message) {
		s.send(ctx, conversationID,
			"De acuerdo, no hice ningún cambio en tu carrito. "+
				"¿En qué más te puedo ayudar?")
		return true
	}

	if !IsAffirmation(message) {
		// The pending action is already consumed; the new message speaks
		// for itself.
		slog.Info("Discarding pending action, message is not a confirmation",
			slog.String("conversationId", conversationID),
			slog.String("pendingId", action.ID))
		return false
	}

	slog.Info("Executing confirmed pending action",
		slog.String("conversationId", conversationID),
		slog.String("pendingId", action.ID),
		slog.String("kind", string(action.Kind)))

	outcome := s.executePending(ctx, conversationID, action)
	if outcome == nil {
		s.send(ctx, conversationID, retryMessage)
		return true
	}

	s.send(ctx, conversationID, outcome.Summary())
	return true
}

// executePending replays a stored plan. The cart is re-read so the plan
// applies to current state; article ids that left the cart since the prompt
// surface as per-item failures, not errors.
func (s *Service) executePending(ctx context.Context, conversationID string, action *pending.Action) *executor.Outcome {
	switch action.Kind {
	case pending.KindAdd:
		if action.Add == nil {
			return nil
		}
		return s.executorSvc.ExecuteAdd(ctx, conversationID, action.Add.Product, action.Add.Quantity)

	case pending.KindRemoval:
		if action.Removal == nil {
			return nil
		}
		lines, err := s.cartSvc.List(ctx, conversationID)
		if err != nil {
			slog.Error("Failed to load cart for confirmed removal",
				slog.String("conversationId", conversationID),
				slog.Any("error", err),
				slog.Bool("telegram", true))
			return nil
		}
		return s.executorSvc.ExecuteRemoval(ctx, conversationID, *action.Removal, lines)

	case pending.KindMulti:
		if action.Multi == nil {
			return nil
		}
		lines, err := s.cartSvc.List(ctx, conversationID)
		if err != nil {
			slog.Error("Failed to load cart for confirmed multi-action",
				slog.String("conversationId", conversationID),
				slog.Any("error", err),
				slog.Bool("telegram", true))
			return nil
		}
		entries, err := s.recentSvc.Get(ctx, conversationID)
		if err != nil {
			slog.Error("Failed to load recent products for confirmed multi-action",
				slog.String("conversationId", conversationID),
				slog.Any("error", err),
				slog.Bool("telegram", true))
			return nil
		}
		return s.executorSvc.ExecuteMulti(ctx, conversationID, *action.Multi, entries, lines)

	case pending.KindClear:
		lines, err := s.cartSvc.List(ctx, conversationID)
		if err != nil {
			slog.Error("Failed to load cart for confirmed clear",
				slog.String("conversationId", conversationID),
				slog.Any("error", err),
				slog.Bool("telegram", true))
			return nil
		}
		return s.executorSvc.ExecuteClear(ctx, conversationID, lines)
	}

	slog.Warn("Unknown pending action kind",
		slog.String("conversationId", conversationID),
		slog.String("kind", string(action.Kind)))
	return nil
}
