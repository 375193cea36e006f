package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"cedabot/app/client/kapso"
	"cedabot/app/config"
	"cedabot/app/service/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

const dedupLimit = 1024

var _ do.Shutdownable = (*Service)(nil)

// Service receives Kapso webhooks, filters and combines the inbound message
// parts, and hands each conversation turn to the dispatch queue. Replies are
// sent asynchronously; the webhook itself always acknowledges fast.
type Service struct {
	app        *fiber.App
	queueSvc   *queue.Service
	kapsoSvc   *kapso.Client
	dedup      *dedupSet
	listenAddr string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	s := &Service{
		queueSvc:   do.MustInvoke[*queue.Service](di),
		kapsoSvc:   do.MustInvoke[*kapso.Client](di),
		dedup:      newDedupSet(dedupLimit),
		listenAddr: cfg.Kapso.ListenAddr,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	s.app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})
	s.app.Post("/webhooks/kapso", s.handleWebhook)

	return s, nil
}

type webhookPayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type eventData struct {
	Message struct {
		ID          string `json:"id"`
		MessageType string `json:"message_type"`
		Content     string `json:"content"`
	} `json:"message"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}

func parseEvents(raw json.RawMessage) []eventData {
	if len(raw) == 0 {
		return nil
	}

	var list []eventData
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var single eventData
	if err := json.Unmarshal(raw, &single); err == nil {
		return []eventData{single}
	}

	return nil
}

func (s *Service) handleWebhook(c *fiber.Ctx) error {
	var payload webhookPayload

	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		slog.Warn("Failed to parse webhook payload", slog.Any("error", err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error"})
	}

	if payload.Type != "whatsapp.message.received" {
		return c.JSON(fiber.Map{"status": "success", "processed": false})
	}

	events := parseEvents(payload.Data)
	if len(events) == 0 {
		slog.Warn("Webhook carried no usable events")
		return c.JSON(fiber.Map{"status": "success", "processed": false})
	}

	conversationID := events[0].Conversation.ID
	if conversationID == "" {
		slog.Warn("Webhook event has no conversation id")
		return c.JSON(fiber.Map{"status": "success", "processed": false})
	}

	messageIDs := make([]string, 0, len(events))
	parts := make([]string, 0, len(events))

	for _, event := range events {
		messageIDs = append(messageIDs, event.Message.ID)

		switch strings.ToLower(event.Message.MessageType) {
		case "reaction", "sticker", "image":
			continue
		}

		if text := strings.TrimSpace(event.Message.Content); text != "" {
			parts = append(parts, text)
		}
	}

	if s.dedup.MarkProcessed(messageIDs) {
		slog.Warn("Duplicate webhook delivery discarded",
			slog.String("conversationId", conversationID))
		return c.JSON(fiber.Map{"status": "success", "processed": false, "duplicate": true})
	}

	go s.markAsRead(messageIDs)

	combined := strings.Join(parts, " ")
	if combined == "" {
		return c.JSON(fiber.Map{"status": "success", "processed": false})
	}

	s.queueSvc.Add(conversationID, combined)

	return c.JSON(fiber.Map{"status": "success", "processed": true})
}

func (s *Service) markAsRead(messageIDs []string) {
	ctx := context.Background()

	for _, id := range messageIDs {
		if id == "" {
			continue
		}
		if err := s.kapsoSvc.MarkAsRead(ctx, id); err != nil {
			slog.Warn("Failed to mark message as read",
				slog.String("messageId", id),
				slog.Any("error", err))
		}
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Service) Start() error {
	return s.app.Listen(s.listenAddr)
}

func (s *Service) Shutdown() error {
	return s.app.Shutdown()
}
