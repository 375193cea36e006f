package intent

import (
	"context"
	"log/slog"

	"cedabot/app/config"
	"cedabot/app/model"
	"cedabot/app/service/oracle"

	_ "embed"

	"github.com/samber/do"
)

//go:embed intent_prompt_template.txt
var intentPromptTemplate string

type completer interface {
	CompleteJSON(ctx context.Context, prompt string, out any) error
}

// Service classifies a raw message into a cart Intent.
type Service struct {
	client completer
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	client, err := oracle.NewClient(cfg.OpenAI.Intent)
	if err != nil {
		return nil, err
	}

	return NewWithClient(client), nil
}

func NewWithClient(client completer) *Service {
	return &Service{client: client}
}

// Classify maps a message plus its context to an Intent. Any oracle failure
// or malformed response degrades to the safe no-op intent so the turn can
// never mutate the cart by accident.
func (s *Service) Classify(
	ctx context.Context,
	message string,
	recentProducts []model.RecentProduct,
	cartLines []model.CartLine,
	tail []model.ConversationMessage,
) Intent {
	prompt := oracle.RenderTemplate(intentPromptTemplate, map[string]any{
		"message":         message,
		"recent_products": model.FormatRecent(recentProducts),
		"cart_items":      model.FormatCart(cartLines),
		"history":         model.WeightedTranscript(tail),
	})

	var resp oracleResponse
	if err := s.client.CompleteJSON(ctx, prompt, &resp); err != nil {
		slog.Warn("Intent oracle returned malformed output", "error", err)
		return SafeNone()
	}

	kind := Kind(resp.Mode)
	if !validKinds[kind] {
		slog.Warn("Intent oracle returned unknown mode", "mode", resp.Mode)
		return SafeNone()
	}

	result := Intent{
		Kind:              kind,
		NeedsConfirmation: resp.NeedsConfirmation,
	}

	if resp.Confidence != nil && *resp.Confidence >= 0 && *resp.Confidence <= 1 {
		result.Confidence = *resp.Confidence
	}

	if resp.ProductIndex != nil {
		result.DirectIndex = *resp.ProductIndex
	}

	// The oracle must not invent indexes; anything outside the candidate set
	// for the classified kind is discarded here, and callers re-validate.
	switch result.Kind {
	case KindAddToCart:
		if result.DirectIndex < 0 || result.DirectIndex > len(recentProducts) {
			result.DirectIndex = 0
		}
	case KindRemoveFromCart:
		if result.DirectIndex < 0 || result.DirectIndex > len(cartLines) {
			result.DirectIndex = 0
		}
	default:
		result.DirectIndex = 0
	}

	return result
}
