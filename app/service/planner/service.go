package planner

import (
	"context"

	"cedabot/app/config"
	"cedabot/app/model"
	"cedabot/app/service/oracle"
	"cedabot/app/service/resolver"

	"github.com/samber/do"
)

type completer interface {
	CompleteJSON(ctx context.Context, prompt string, out any) error
}

type referenceResolver interface {
	ResolveRecent(ctx context.Context, reference string, entries []model.RecentProduct) resolver.Result
	ResolveCart(ctx context.Context, reference string, lines []model.CartLine) resolver.Result
}

// Service builds removal and multi-action plans. Planning never mutates
// anything; plans are handed to the gate and only then to the executor.
type Service struct {
	removalClient completer
	multiClient   completer
	resolverSvc   referenceResolver
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	removalClient, err := oracle.NewClient(cfg.OpenAI.Removal)
	if err != nil {
		return nil, err
	}

	multiClient, err := oracle.NewClient(cfg.OpenAI.Multi)
	if err != nil {
		return nil, err
	}

	return NewWith(removalClient, multiClient, do.MustInvoke[*resolver.Service](di)), nil
}

func NewWith(removalClient, multiClient completer, resolverSvc referenceResolver) *Service {
	return &Service{
		removalClient: removalClient,
		multiClient:   multiClient,
		resolverSvc:   resolverSvc,
	}
}
