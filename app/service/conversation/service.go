package conversation

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"cedabot/app/client/kapso"
	"cedabot/app/client/payment"
	"cedabot/app/config"
	"cedabot/app/model"
	"cedabot/app/service/cart"
	"cedabot/app/service/catalog"
	"cedabot/app/service/executor"
	"cedabot/app/service/gate"
	"cedabot/app/service/intent"
	"cedabot/app/service/oracle"
	"cedabot/app/service/pending"
	"cedabot/app/service/planner"
	"cedabot/app/service/recent"
	"cedabot/app/service/resolver"

	"github.com/samber/do"
)

//go:embed reply_prompt_template.txt
var replyPromptTemplate string

// historyLimit caps the conversation tail fetched per turn.
const historyLimit = 200

const retryMessage = "Lo siento, tuve un problema procesando tu mensaje. " +
	"Por favor inténtalo de nuevo en un momento."

type transport interface {
	SendMessage(ctx context.Context, conversationID, text string) error
	SendProductsWithImages(ctx context.Context, conversationID string, products []model.Product, intro string) error
	SendCartWithImages(ctx context.Context, conversationID string, lines []model.CartLine, header string) error
	SendCheckoutWithImages(ctx context.Context, conversationID string, lines []model.CartLine, checkoutURL string) error
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]model.ConversationMessage, error)
}

type classifier interface {
	Classify(ctx context.Context, message string, recentProducts []model.RecentProduct, cartLines []model.CartLine, tail []model.ConversationMessage) intent.Intent
}

type referenceResolver interface {
	ResolveAddWithFallback(ctx context.Context, conversationID, reference string, entries []model.RecentProduct, tail []model.ConversationMessage) (resolver.Result, []model.RecentProduct, error)
	ResolveCart(ctx context.Context, reference string, lines []model.CartLine) resolver.Result
}

type actionPlanner interface {
	PlanRemoval(ctx context.Context, message string, lines []model.CartLine) planner.RemovalPlan
	PlanMulti(ctx context.Context, message string, entries []model.RecentProduct, lines []model.CartLine) planner.MultiActionPlan
}

type actionExecutor interface {
	ExecuteAdd(ctx context.Context, conversationID string, product model.Product, quantity int) *executor.Outcome
	ExecuteRemoval(ctx context.Context, conversationID string, plan planner.RemovalPlan, lines []model.CartLine) *executor.Outcome
	ExecuteMulti(ctx context.Context, conversationID string, plan planner.MultiActionPlan, entries []model.RecentProduct, lines []model.CartLine) *executor.Outcome
	ExecuteClear(ctx context.Context, conversationID string, lines []model.CartLine) *executor.Outcome
}

type cartReader interface {
	List(ctx context.Context, conversationID string) ([]model.CartLine, error)
}

type snapshotStore interface {
	Get(ctx context.Context, conversationID string) ([]model.RecentProduct, error)
	Save(ctx context.Context, conversationID string, products []model.Product) error
}

type pendingStore interface {
	Save(ctx context.Context, action pending.Action) error
	Take(ctx context.Context, conversationID string) (*pending.Action, error)
}

type catalogSearcher interface {
	Search(ctx context.Context, message string, tail []model.ConversationMessage) ([]model.Product, error)
}

type checkoutCreator interface {
	CreateCheckoutSession(conversationID string, lines []model.CartLine) (string, error)
}

type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Service runs the full per-message pipeline: classify, resolve or plan, gate
// and execute, then render the reply over the transport. Every failure path
// ends in a conversational message, never a dropped turn.
type Service struct {
	transport   transport
	intentSvc   classifier
	resolverSvc referenceResolver
	plannerSvc  actionPlanner
	executorSvc actionExecutor
	cartSvc     cartReader
	recentSvc   snapshotStore
	pendingSvc  pendingStore
	catalogSvc  catalogSearcher
	paymentSvc  checkoutCreator
	replyClient completer
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	replyClient, err := oracle.NewClient(cfg.OpenAI.Reply)
	if err != nil {
		return nil, fmt.Errorf("oracle.NewClient: %w", err)
	}

	return &Service{
		transport:   do.MustInvoke[*kapso.Client](di),
		intentSvc:   do.MustInvoke[*intent.Service](di),
		resolverSvc: do.MustInvoke[*resolver.Service](di),
		plannerSvc:  do.MustInvoke[*planner.Service](di),
		executorSvc: do.MustInvoke[*executor.Service](di),
		cartSvc:     do.MustInvoke[*cart.Service](di),
		recentSvc:   do.MustInvoke[*recent.Service](di),
		pendingSvc:  do.MustInvoke[*pending.Service](di),
		catalogSvc:  do.MustInvoke[*catalog.Service](di),
		paymentSvc:  do.MustInvoke[*payment.Client](di),
		replyClient: replyClient,
	}, nil
}

// Deps bundles every collaborator so tests can swap in fakes.
type Deps struct {
	Transport   transport
	Intent      classifier
	Resolver    referenceResolver
	Planner     actionPlanner
	Executor    actionExecutor
	Cart        cartReader
	Recent      snapshotStore
	Pending     pendingStore
	Catalog     catalogSearcher
	Payment     checkoutCreator
	ReplyClient completer
}

func NewWith(deps Deps) *Service {
	return &Service{
		transport:   deps.Transport,
		intentSvc:   deps.Intent,
		resolverSvc: deps.Resolver,
		plannerSvc:  deps.Planner,
		executorSvc: deps.Executor,
		cartSvc:     deps.Cart,
		recentSvc:   deps.Recent,
		pendingSvc:  deps.Pending,
		catalogSvc:  deps.Catalog,
		paymentSvc:  deps.Payment,
		replyClient: deps.ReplyClient,
	}
}

// ProcessMessage handles one inbound user message end to end. It never
// returns an error: every failure is logged and answered conversationally.
func (s *Service) ProcessMessage(ctx context.Context, conversationID, message string) {
	entries, err := s.recentSvc.Get(ctx, conversationID)
	if err != nil {
		slog.Error("Failed to load recent products snapshot",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
		entries = nil
	}

	lines, err := s.cartSvc.List(ctx, conversationID)
	if err != nil {
		slog.Error("Failed to load cart",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
		s.send(ctx, conversationID, retryMessage)
		return
	}

	tail, err := s.transport.GetConversationMessages(ctx, conversationID, historyLimit)
	if err != nil {
		slog.Warn("Failed to fetch conversation history",
			slog.String("conversationId", conversationID),
			slog.Any("error", err))
		tail = nil
	}

	if s.handlePending(ctx, conversationID, message) {
		return
	}

	it := s.intentSvc.Classify(ctx, message, entries, lines, tail)

	slog.Info("Classified message",
		slog.String("conversationId", conversationID),
		slog.String("kind", string(it.Kind)),
		slog.Int("directIndex", it.DirectIndex),
		slog.Float64("confidence", it.Confidence))

	switch it.Kind {
	case intent.KindNone:
		s.handleNone(ctx, conversationID, message, tail)
	case intent.KindShowCart:
		s.handleShowCart(ctx, conversationID, lines)
	case intent.KindAddToCart:
		s.handleAdd(ctx, conversationID, message, it, entries, tail)
	case intent.KindRemoveFromCart:
		s.handleRemove(ctx, conversationID, message, it, lines)
	case intent.KindMultiAction:
		s.handleMulti(ctx, conversationID, message, it, entries, lines)
	case intent.KindCheckout:
		s.handleCheckout(ctx, conversationID, lines)
	case intent.KindContinueShopping:
		s.handleContinueShopping(ctx, conversationID, message, tail)
	case intent.KindClearCart:
		s.handleClear(ctx, conversationID, it, lines)
	}
}

func (s *Service) send(ctx context.Context, conversationID, text string) {
	if err := s.transport.SendMessage(ctx, conversationID, text); err != nil {
		slog.Error("Failed to send message",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
	}
}

func (s *Service) handleNone(ctx context.Context, conversationID, message string, tail []model.ConversationMessage) {
	prompt := oracle.RenderTemplate(replyPromptTemplate, map[string]any{
		"message": message,
		"history": model.WeightedTranscript(tail),
	})

	reply, err := s.replyClient.Complete(ctx, prompt)
	if err != nil || reply == "" {
		slog.Warn("Reply oracle failed, using fallback",
			slog.String("conversationId", conversationID),
			slog.Any("error", err))
		reply = "¡Hola! Soy el asistente de CedaMoney. Puedo mostrarte productos, " +
			"armar tu carrito y ayudarte a pagar. ¿Qué estás buscando hoy?"
	}

	s.send(ctx, conversationID, reply)
}

func (s *Service) handleShowCart(ctx context.Context, conversationID string, lines []model.CartLine) {
	if len(lines) == 0 {
		s.send(ctx, conversationID,
			"Por ahora tu carrito está vacío. "+
				"Puedo mostrarte productos y luego me dices, por ejemplo, "+
				"\"agrega el producto 1 al carrito\".")
		return
	}

	if err := s.transport.SendCartWithImages(ctx, conversationID, lines,
		"Este es el resumen de tu carrito actual:"); err != nil {
		slog.Error("Failed to send cart",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
	}
}

func (s *Service) handleAdd(
	ctx context.Context,
	conversationID, message string,
	it intent.Intent,
	entries []model.RecentProduct,
	tail []model.ConversationMessage,
) {
	var result resolver.Result

	if it.DirectIndex > 0 {
		result = resolver.FromRecentIndex(entries, it.DirectIndex)
		if !result.Resolved {
			s.send(ctx, conversationID,
				"No encontré ese número en la lista de productos que te mostré. "+
					"Pídeme ver productos de nuevo y dime el número que te interese.")
			return
		}
	} else {
		var listing []model.RecentProduct
		var err error

		result, listing, err = s.resolverSvc.ResolveAddWithFallback(ctx, conversationID, message, entries, tail)
		if err != nil {
			slog.Error("Add resolution failed",
				slog.String("conversationId", conversationID),
				slog.Any("error", err),
				slog.Bool("telegram", true))
			s.send(ctx, conversationID, retryMessage)
			return
		}
		if listing != nil {
			entries = listing
		}

		if !result.Resolved {
			if len(entries) == 0 {
				s.send(ctx, conversationID,
					"Aún no te he mostrado productos en esta conversación. "+
						"Dime qué estás buscando y te enseño opciones para agregar al carrito.")
				return
			}
			s.send(ctx, conversationID,
				"No estoy seguro de qué producto quieres agregar. "+
					"Dime el número, por ejemplo: \"agrega el producto 1 al carrito\".")
			return
		}
	}

	entry, found := recent.FindByPosition(entries, result.Position)
	if !found {
		s.send(ctx, conversationID,
			"No estoy seguro de qué producto quieres agregar. "+
				"Dime el número, por ejemplo: \"agrega el producto 1 al carrito\".")
		return
	}

	decision := gate.Check(it.Confidence, it.NeedsConfirmation || result.NeedsConfirmation, 1)
	if decision.Confirm {
		action := pending.Action{
			ConversationID: conversationID,
			Kind:           pending.KindAdd,
			Add: &pending.AddAction{
				Product:  entry.Product,
				Quantity: 1,
			},
		}
		if !s.savePending(ctx, conversationID, action) {
			return
		}

		s.send(ctx, conversationID, fmt.Sprintf(
			"Solo para confirmar, ¿quieres que agregue el Producto %d: %s ($%.2f MXN) a tu carrito? "+
				"Responde \"sí\" para confirmarlo o \"no\" para dejarlo así.",
			entry.Position, entry.Product.Name, entry.Product.PriceMXN))
		return
	}

	outcome := s.executorSvc.ExecuteAdd(ctx, conversationID, entry.Product, 1)
	s.send(ctx, conversationID, outcome.Summary())
}

func (s *Service) handleRemove(
	ctx context.Context,
	conversationID, message string,
	it intent.Intent,
	lines []model.CartLine,
) {
	if len(lines) == 0 {
		s.send(ctx, conversationID,
			"Tu carrito está vacío, así que no hay nada que quitar. "+
				"¿Quieres que te muestre productos?")
		return
	}

	var plan planner.RemovalPlan

	if it.DirectIndex > 0 {
		result := resolver.FromCartIndex(lines, it.DirectIndex)
		if !result.Resolved {
			s.showCartForDisambiguation(ctx, conversationID, lines)
			return
		}
		plan = planner.RemovalPlan{
			Kind:          planner.RemovalSingle,
			ItemsToRemove: []string{result.ArticleID},
			Confidence:    result.Confidence,
		}
	} else {
		plan = s.plannerSvc.PlanRemoval(ctx, message, lines)
		if plan.Empty() {
			s.showCartForDisambiguation(ctx, conversationID, lines)
			return
		}
	}

	flagged := it.NeedsConfirmation || plan.NeedsConfirmation || gate.BelowRemoveBar(plan.Confidence)

	decision := gate.Check(it.Confidence, flagged, plan.AffectedCount())
	if decision.Confirm {
		action := pending.Action{
			ConversationID: conversationID,
			Kind:           pending.KindRemoval,
			Removal:        &plan,
		}
		if !s.savePending(ctx, conversationID, action) {
			return
		}

		s.send(ctx, conversationID, fmt.Sprintf(
			"Esta acción afectaría %s de tu carrito: %s\n\n"+
				"¿Confirmas que quieres hacerlo? Responde \"sí\" o \"no\".",
			pluralItems(plan.AffectedCount()), describeRemoval(plan, lines)))
		return
	}

	outcome := s.executorSvc.ExecuteRemoval(ctx, conversationID, plan, lines)
	s.send(ctx, conversationID, outcome.Summary())
}

func (s *Service) handleMulti(
	ctx context.Context,
	conversationID, message string,
	it intent.Intent,
	entries []model.RecentProduct,
	lines []model.CartLine,
) {
	plan := s.plannerSvc.PlanMulti(ctx, message, entries, lines)
	if plan.Empty() {
		s.send(ctx, conversationID,
			"Entendí que quieres hacer varios cambios, pero no pude identificar los productos. "+
				"Dime cada cambio con su número, por ejemplo: "+
				"\"quita el producto 2 y agrega el producto 1\".")
		return
	}

	decision := gate.Check(it.Confidence, it.NeedsConfirmation || plan.Ambiguous, plan.AffectedCount())
	if decision.Confirm {
		action := pending.Action{
			ConversationID: conversationID,
			Kind:           pending.KindMulti,
			Multi:          &plan,
		}
		if !s.savePending(ctx, conversationID, action) {
			return
		}

		s.send(ctx, conversationID, fmt.Sprintf(
			"Quiero estar seguro antes de tocar tu carrito. Haría estos cambios: %s\n\n"+
				"¿Confirmas? Responde \"sí\" o \"no\".",
			describeMulti(plan, entries, lines)))
		return
	}

	outcome := s.executorSvc.ExecuteMulti(ctx, conversationID, plan, entries, lines)
	s.send(ctx, conversationID, outcome.Summary())
}

func (s *Service) handleCheckout(ctx context.Context, conversationID string, lines []model.CartLine) {
	if len(lines) == 0 {
		s.send(ctx, conversationID,
			"Tu carrito está vacío, no hay nada que pagar todavía. "+
				"¿Quieres que te muestre productos?")
		return
	}

	checkoutURL, err := s.paymentSvc.CreateCheckoutSession(conversationID, lines)
	if err != nil {
		slog.Error("Failed to create checkout session",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
		s.send(ctx, conversationID, retryMessage)
		return
	}

	if err = s.transport.SendCheckoutWithImages(ctx, conversationID, lines, checkoutURL); err != nil {
		slog.Error("Failed to send checkout summary",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
	}
}

func (s *Service) handleContinueShopping(ctx context.Context, conversationID, message string, tail []model.ConversationMessage) {
	products, err := s.catalogSvc.Search(ctx, message, tail)
	if err != nil {
		slog.Error("Catalog search failed",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
		s.send(ctx, conversationID, retryMessage)
		return
	}

	if len(products) == 0 {
		s.send(ctx, conversationID,
			"No encontré productos que coincidan con lo que buscas. "+
				"¿Me das más detalles? Por ejemplo el tipo de prenda o el color.")
		return
	}

	if err = s.recentSvc.Save(ctx, conversationID, products); err != nil {
		slog.Error("Failed to save recent products snapshot",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
		s.send(ctx, conversationID, retryMessage)
		return
	}

	intro := "Te comparto algunas opciones que creo que te pueden gustar:"
	if err = s.transport.SendProductsWithImages(ctx, conversationID, products, intro); err != nil {
		slog.Error("Failed to send product listing",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
	}
}

func (s *Service) handleClear(ctx context.Context, conversationID string, it intent.Intent, lines []model.CartLine) {
	if len(lines) == 0 {
		s.send(ctx, conversationID, "Tu carrito ya está vacío.")
		return
	}

	decision := gate.Check(it.Confidence, it.NeedsConfirmation, len(lines))
	if decision.Confirm {
		action := pending.Action{
			ConversationID: conversationID,
			Kind:           pending.KindClear,
		}
		if !s.savePending(ctx, conversationID, action) {
			return
		}

		s.send(ctx, conversationID, fmt.Sprintf(
			"¿Seguro que quieres vaciar tu carrito? Se quitarían %s. "+
				"Responde \"sí\" o \"no\".",
			pluralItems(len(lines))))
		return
	}

	outcome := s.executorSvc.ExecuteClear(ctx, conversationID, lines)
	s.send(ctx, conversationID, outcome.Summary())
}

func (s *Service) showCartForDisambiguation(ctx context.Context, conversationID string, lines []model.CartLine) {
	if err := s.transport.SendCartWithImages(ctx, conversationID, lines,
		"No estoy seguro de qué producto quieres quitar. Este es tu carrito, "+
			"dime el número exacto:"); err != nil {
		slog.Error("Failed to send disambiguation cart",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
	}
}

func (s *Service) savePending(ctx context.Context, conversationID string, action pending.Action) bool {
	if err := s.pendingSvc.Save(ctx, action); err != nil {
		slog.Error("Failed to save pending action",
			slog.String("conversationId", conversationID),
			slog.Any("error", err),
			slog.Bool("telegram", true))
		s.send(ctx, conversationID, retryMessage)
		return false
	}
	return true
}

func pluralItems(n int) string {
	if n == 1 {
		return "1 producto"
	}
	return fmt.Sprintf("%d productos", n)
}

func describeRemoval(plan planner.RemovalPlan, lines []model.CartLine) string {
	names := make(map[string]string, len(lines))
	for _, line := range lines {
		names[line.ArticleID] = line.Name
	}

	desc := ""
	for _, id := range plan.ItemsToRemove {
		name := names[id]
		if name == "" {
			name = id
		}
		if desc != "" {
			desc += ", "
		}
		desc += fmt.Sprintf("quitar %s", name)
	}
	for id, qty := range plan.QuantityChanges {
		name := names[id]
		if name == "" {
			name = id
		}
		if desc != "" {
			desc += ", "
		}
		desc += fmt.Sprintf("dejar %s en %d unidad(es)", name, qty)
	}

	return desc
}

func describeMulti(plan planner.MultiActionPlan, entries []model.RecentProduct, lines []model.CartLine) string {
	desc := ""

	for _, item := range plan.ItemsToRemove {
		name := item.ReferenceText
		for _, line := range lines {
			if line.ArticleID == item.ArticleID {
				name = line.Name
				break
			}
		}
		if desc != "" {
			desc += ", "
		}
		desc += fmt.Sprintf("quitar %s", name)
	}

	for _, item := range plan.ItemsToAdd {
		name := item.ReferenceText
		for _, entry := range entries {
			if entry.Product.ArticleID == item.ArticleID {
				name = entry.Product.Name
				break
			}
		}
		if desc != "" {
			desc += ", "
		}
		desc += fmt.Sprintf("agregar %s", name)
	}

	return desc
}
