package kapso

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cedabot/app/config"
	"cedabot/app/model"

	"github.com/samber/do"
)

// Client talks to the Kapso WhatsApp API. All requests authenticate with the
// X-API-Key header.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWith(cfg.Kapso.BaseURL, cfg.Kapso.APIKey), nil
}

func NewWith(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("kapso returned %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

type messagePayload struct {
	Content     string `json:"content,omitempty"`
	MessageType string `json:"message_type"`
	MediaURL    string `json:"media_url,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

type sendRequest struct {
	Message messagePayload `json:"message"`
}

// SendMessage sends a plain text message to a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) error {
	path := fmt.Sprintf("/whatsapp_conversations/%s/whatsapp_messages", url.PathEscape(conversationID))

	return c.doJSON(ctx, http.MethodPost, path, sendRequest{
		Message: messagePayload{
			Content:     text,
			MessageType: "text",
		},
	}, nil)
}

// SendImageMessage sends an image by public URL with an optional caption.
func (c *Client) SendImageMessage(ctx context.Context, conversationID, imageURL, caption string) error {
	path := fmt.Sprintf("/whatsapp_conversations/%s/whatsapp_messages", url.PathEscape(conversationID))

	return c.doJSON(ctx, http.MethodPost, path, sendRequest{
		Message: messagePayload{
			MessageType: "image",
			MediaURL:    imageURL,
			Caption:     caption,
			Content:     caption,
		},
	}, nil)
}

// SendProductWithImage sends a numbered product card. Products without a
// usable image URL degrade to a text-only card.
func (c *Client) SendProductWithImage(ctx context.Context, conversationID string, product model.Product, position int) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*Producto %d:* %s\n", position, product.Name)
	if product.Color != "" {
		fmt.Fprintf(&sb, "🎨 Color: %s\n", product.Color)
	}
	if product.Type != "" {
		fmt.Fprintf(&sb, "👕 Tipo: %s\n", product.Type)
	}
	if product.Category != "" {
		fmt.Fprintf(&sb, "📦 Categoría: %s\n", product.Category)
	}
	fmt.Fprintf(&sb, "💰 *Precio: $%.2f MXN*\n", product.PriceMXN)
	fmt.Fprintf(&sb, "\n_Responde \"Agrega el producto %d\" para añadirlo al carrito_", position)

	if !strings.HasPrefix(product.ImageURL, "http") {
		slog.Warn("Product has no usable image, sending text card",
			slog.String("articleId", product.ArticleID),
			slog.Int("position", position))

		return c.SendMessage(ctx, conversationID, sb.String())
	}

	return c.SendImageMessage(ctx, conversationID, product.ImageURL, sb.String())
}

const maxProductImages = 5

// SendProductsWithImages sends an optional intro followed by up to maxProductImages
// product cards. Failures on individual cards are logged and skipped so one bad
// image does not hide the rest of the listing.
func (c *Client) SendProductsWithImages(ctx context.Context, conversationID string, products []model.Product, intro string) error {
	if intro != "" {
		if err := c.SendMessage(ctx, conversationID, intro); err != nil {
			slog.Error("Failed to send listing intro",
				slog.String("conversationId", conversationID),
				slog.Any("error", err))
		}
	}

	shown := products
	if len(shown) > maxProductImages {
		shown = shown[:maxProductImages]
	}

	for i, product := range shown {
		if err := c.SendProductWithImage(ctx, conversationID, product, i+1); err != nil {
			slog.Error("Failed to send product card",
				slog.String("conversationId", conversationID),
				slog.Int("position", i+1),
				slog.Any("error", err))

			fallback := fmt.Sprintf("Producto %d: %s - $%.2f MXN", i+1, product.Name, product.PriceMXN)
			if err = c.SendMessage(ctx, conversationID, fallback); err != nil {
				slog.Error("Failed to send product fallback text",
					slog.String("conversationId", conversationID),
					slog.Int("position", i+1),
					slog.Any("error", err))
			}
		}
	}

	if remaining := len(products) - len(shown); remaining > 0 {
		note := fmt.Sprintf("_...y %d producto(s) más. Pídeme ver más opciones si te interesa._", remaining)
		if err := c.SendMessage(ctx, conversationID, note); err != nil {
			slog.Error("Failed to send remaining products note",
				slog.String("conversationId", conversationID),
				slog.Any("error", err))
		}
	}

	return nil
}

func (c *Client) sendCartLineWithImage(ctx context.Context, conversationID string, line model.CartLine, position int) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "*%d. %s*\n", position, line.Name)
	if line.Color != "" {
		fmt.Fprintf(&sb, "🎨 Color: %s\n", line.Color)
	}
	fmt.Fprintf(&sb, "📦 Cantidad: %d\n", line.Quantity)
	fmt.Fprintf(&sb, "💰 Subtotal: *$%.2f MXN*", line.Subtotal())

	if !strings.HasPrefix(line.ImageURL, "http") {
		return c.SendMessage(ctx, conversationID, sb.String())
	}

	return c.SendImageMessage(ctx, conversationID, line.ImageURL, sb.String())
}

// SendCartWithImages renders the cart as one card per line plus a footer with
// the total and the next actions.
func (c *Client) SendCartWithImages(ctx context.Context, conversationID string, lines []model.CartLine, header string) error {
	if header != "" {
		if err := c.SendMessage(ctx, conversationID, header); err != nil {
			slog.Error("Failed to send cart header",
				slog.String("conversationId", conversationID),
				slog.Any("error", err))
		}
	}

	for i, line := range lines {
		if err := c.sendCartLineWithImage(ctx, conversationID, line, i+1); err != nil {
			slog.Error("Failed to send cart item card",
				slog.String("conversationId", conversationID),
				slog.Int("position", i+1),
				slog.Any("error", err))

			fallback := fmt.Sprintf("%d. %s x%d - $%.2f MXN", i+1, line.Name, line.Quantity, line.Subtotal())
			if err = c.SendMessage(ctx, conversationID, fallback); err != nil {
				slog.Error("Failed to send cart item fallback text",
					slog.String("conversationId", conversationID),
					slog.Int("position", i+1),
					slog.Any("error", err))
			}
		}
	}

	footer := fmt.Sprintf(
		"━━━━━━━━━━━━━━━━━━\n"+
			"💰 *TOTAL: $%.2f MXN*\n"+
			"━━━━━━━━━━━━━━━━━━\n\n"+
			"¿Qué deseas hacer?\n"+
			"• \"Proceder al pago\" - Finalizar compra\n"+
			"• \"Quitar producto X\" - Eliminar un item\n"+
			"• \"Seguir comprando\" - Buscar más productos",
		model.CartTotal(lines))

	return c.SendMessage(ctx, conversationID, footer)
}

// SendCheckoutWithImages renders an order summary with one card per line and a
// footer carrying the payment link.
func (c *Client) SendCheckoutWithImages(ctx context.Context, conversationID string, lines []model.CartLine, checkoutURL string) error {
	header := "🛒 *RESUMEN DE TU ORDEN*\n\nEstos son los productos que vas a comprar:"
	if err := c.SendMessage(ctx, conversationID, header); err != nil {
		slog.Error("Failed to send checkout header",
			slog.String("conversationId", conversationID),
			slog.Any("error", err))
	}

	for i, line := range lines {
		if err := c.sendCartLineWithImage(ctx, conversationID, line, i+1); err != nil {
			slog.Error("Failed to send checkout item card",
				slog.String("conversationId", conversationID),
				slog.Int("position", i+1),
				slog.Any("error", err))
		}
	}

	footer := fmt.Sprintf(
		"━━━━━━━━━━━━━━━━━━\n"+
			"💰 *TOTAL A PAGAR: $%.2f MXN*\n"+
			"━━━━━━━━━━━━━━━━━━\n\n"+
			"👉 *HAZ CLIC AQUÍ PARA PAGAR:*\n"+
			"%s\n\n"+
			"✅ Pago 100%% seguro con Stripe\n"+
			"🚚 Envío a toda la República Mexicana\n"+
			"📦 Recibirás confirmación de tu orden\n"+
			"⏰ Este link es válido por 24 horas\n\n"+
			"_Si deseas modificar tu carrito, dime \"seguir comprando\" o \"modificar carrito\"._",
		model.CartTotal(lines), checkoutURL)

	return c.SendMessage(ctx, conversationID, footer)
}

type apiMessage struct {
	ID              string            `json:"id"`
	Direction       string            `json:"direction"`
	Content         string            `json:"content"`
	MessageType     string            `json:"message_type"`
	MessageTypeData map[string]string `json:"message_type_data"`
	CreatedAt       string            `json:"created_at"`
}

type messagesResponse struct {
	Data []apiMessage `json:"data"`
}

// GetConversationMessages fetches the conversation history oldest first.
// Inbound messages map to the "client" sender, everything else to the
// assistant.
func (c *Client) GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]model.ConversationMessage, error) {
	path := fmt.Sprintf("/whatsapp_conversations/%s/whatsapp_messages?page=1&per_page=%d",
		url.PathEscape(conversationID), limit)

	var resp messagesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch conversation messages: %w", err)
	}

	result := make([]model.ConversationMessage, 0, len(resp.Data))

	for _, msg := range resp.Data {
		sender := "cedamoney"
		if msg.Direction == "inbound" {
			sender = "client"
		}

		text := msg.Content
		if text == "" && msg.MessageTypeData != nil {
			text = msg.MessageTypeData["text"]
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		result = append(result, model.ConversationMessage{
			Timestamp: msg.CreatedAt,
			Sender:    sender,
			Text:      strings.TrimSpace(text),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// MarkAsRead flags a message as read in WhatsApp. Failures are not fatal to
// message handling, callers log and continue.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	path := fmt.Sprintf("/whatsapp_messages/%s/mark_as_read", url.PathEscape(messageID))

	return c.doJSON(ctx, http.MethodPatch, path, nil, nil)
}
