package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"cedabot/app/client/postgres"
	"cedabot/app/config"
	"cedabot/app/model"
	"cedabot/app/service/oracle"

	_ "embed"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/embeddings"
)

//go:embed query_prompt_template.txt
var queryPromptTemplate string

const topK = 5

type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type embedQuerier interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service searches the product catalog by embedding similarity. The search
// query is first distilled from the message and conversation tail by an
// oracle so that exactly one garment is searched at a time.
type Service struct {
	db       *sql.DB
	client   completer
	embedder embedQuerier
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	pg := do.MustInvoke[*postgres.Client](di)

	client, err := oracle.NewClient(cfg.OpenAI.Query)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client.LLM())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return NewWith(pg.DB, client, embedder), nil
}

func NewWith(db *sql.DB, client completer, embedder embedQuerier) *Service {
	return &Service{
		db:       db,
		client:   client,
		embedder: embedder,
	}
}

// BuildQuery distills the message and weighted conversation tail into a
// one-garment search phrase. On oracle failure it degrades to the raw
// message, which still searches.
func (s *Service) BuildQuery(ctx context.Context, message string, tail []model.ConversationMessage) string {
	prompt := oracle.RenderTemplate(queryPromptTemplate, map[string]any{
		"message": message,
		"history": model.WeightedTranscript(tail),
	})

	query, err := s.client.Complete(ctx, prompt)
	if err != nil || query == "" {
		slog.Warn("Query oracle failed, using raw message", "error", err)
		return message
	}

	slog.Debug("Built search query", "query", query)

	return query
}

// Search ranks catalog products against the distilled query by cosine
// similarity and returns the top results.
func (s *Service) Search(ctx context.Context, message string, tail []model.ConversationMessage) ([]model.Product, error) {
	query := s.BuildQuery(ctx, message, tail)

	queryEmbedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT
			article_id,
			prod_name,
			product_type_name,
			product_group_name,
			colour_group_name,
			detail_desc,
			price_mxn,
			image_url,
			embedding
		FROM products
		WHERE embedding IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	type scored struct {
		product    model.Product
		similarity float64
	}

	var candidates []scored

	for rows.Next() {
		var p model.Product
		var embeddingJSON []byte

		if err = rows.Scan(
			&p.ArticleID,
			&p.Name,
			&p.Type,
			&p.Category,
			&p.Color,
			&p.Description,
			&p.PriceMXN,
			&p.ImageURL,
			&embeddingJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		var productEmbedding []float32
		if err = json.Unmarshal(embeddingJSON, &productEmbedding); err != nil {
			slog.Warn("Skipping product with malformed embedding", "article_id", p.ArticleID)
			continue
		}

		candidates = append(candidates, scored{
			product:    p,
			similarity: cosineSimilarity(queryEmbedding, productEmbedding),
		})
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]model.Product, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, c.product)
	}

	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
