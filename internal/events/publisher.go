package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/models"
)

type EventType string

const (
	// EventTypeProductExtracted is published after a product passed validation
	EventTypeProductExtracted EventType = "PRODUCT_EXTRACTED"

	aggregateType = "product"
	eventSource   = "product-extractor"
)

// ProductExtractedPayload is the PRODUCT_EXTRACTED event body. It carries a
// summary of the product; consumers needing the full record call the API.
type ProductExtractedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	ProductID   string    `json:"product_id"`
	Marketplace string    `json:"marketplace"`
	ExternalID  string    `json:"external_id,omitempty"`
	SourceURL   string    `json:"source_url"`
	Title       string    `json:"title"`
	Price       Price     `json:"price"`
	Images      []string  `json:"images"`
	Seller      string    `json:"seller"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	Source      string    `json:"source"`
}

type Price struct {
	Amount   float64  `json:"amount"`
	Original *float64 `json:"original,omitempty"`
	Currency string   `json:"currency"`
}

// NewProductExtractedPayload summarises product for the event stream.
func NewProductExtractedPayload(product *models.CanonicalProduct) *ProductExtractedPayload {
	images := make([]string, 0, len(product.Images))
	for _, img := range product.Images {
		images = append(images, img.URL)
	}

	return &ProductExtractedPayload{
		ProductID:   product.ID,
		Marketplace: product.Marketplace,
		ExternalID:  product.ExternalID,
		SourceURL:   product.SourceURL,
		Title:       product.Title,
		Price: Price{
			Amount:   product.Price.Current,
			Original: product.Price.Original,
			Currency: product.Price.Currency,
		},
		Images:      images,
		Seller:      product.Seller.Name,
		Rating:      product.Ratings.Average,
		ReviewCount: product.Ratings.Count,
	}
}

// AggregateID identifies the marketplace listing, falling back to the
// extraction ID when the listing ID is unknown.
func (p *ProductExtractedPayload) AggregateID() string {
	if p.ExternalID == "" {
		return p.ProductID
	}
	return p.Marketplace + ":" + p.ExternalID
}

// TxRunner runs fn in one database transaction. *database.DB satisfies it.
type TxRunner interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// OutboxWriter stores an event inside a transaction.
type OutboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher writes extraction events through the transactional outbox.
type Publisher struct {
	db     TxRunner
	outbox OutboxWriter
	stream string
	logger *slog.Logger
}

func NewPublisher(db *database.DB, stream string, logger *slog.Logger) *Publisher {
	return newPublisher(db, database.NewOutboxRepository(db), stream, logger)
}

func newPublisher(db TxRunner, outbox OutboxWriter, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultTargetStream
	}
	return &Publisher{
		db:     db,
		outbox: outbox,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishProductExtracted records a PRODUCT_EXTRACTED event for product.
func (p *Publisher) PublishProductExtracted(ctx context.Context, product *models.CanonicalProduct) error {
	if product == nil {
		return errors.New("nil product")
	}
	return p.Publish(ctx, NewProductExtractedPayload(product))
}

// Publish fills missing event metadata and inserts payload into the outbox.
func (p *Publisher) Publish(ctx context.Context, payload *ProductExtractedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeProductExtracted)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	if payload.Source == "" {
		payload.Source = eventSource
	}
	if payload.Images == nil {
		payload.Images = []string{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   payload.AggregateID(),
		EventType:     payload.EventType,
		Payload:       data,
		TargetStream:  p.stream,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"product_id", payload.ProductID,
		"aggregate_id", outboxEvent.AggregateID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}
