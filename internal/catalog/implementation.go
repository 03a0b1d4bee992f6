// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bookedin/internal/eventbus"
	"bookedin/internal/models"
	"bookedin/internal/storage"
)

// service implements the Service interface.
type service struct {
	store  storage.Store
	bus    *eventbus.Bus
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService creates a new catalog service instance.
func NewService(store storage.Store, bus *eventbus.Bus, logger *zap.Logger) Service {
	return &service{
		store:  store,
		bus:    bus,
		logger: logger,
		tracer: otel.Tracer("bookedin/catalog"),
		now:    time.Now,
	}
}

func (s *service) AddBook(ctx context.Context, isbn, title, author string, copies int) ([]models.BookCopy, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.add_book",
		trace.WithAttributes(
			attribute.String("book.isbn", isbn),
			attribute.Int("book.copies", copies),
		),
	)
	defer span.End()

	if copies < 1 {
		return nil, ErrNoCopies
	}

	added := make([]models.BookCopy, 0, copies)
	addedAt := s.now()
	for i := 0; i < copies; i++ {
		added = append(added, models.BookCopy{
			ID:        uuid.New(),
			ISBN:      isbn,
			Title:     title,
			Author:    author,
			Available: true,
			AddedAt:   addedAt,
		})
	}

	if err := s.store.Copies().Add(ctx, added); err != nil {
		return nil, fmt.Errorf("insert copies: %w", err)
	}

	s.logger.Info("book added to catalog",
		zap.String("isbn", isbn),
		zap.String("title", title),
		zap.Int("copies", copies),
	)
	s.bus.Publish(eventbus.BookAdded, eventbus.Payload{
		"isbn":   isbn,
		"title":  title,
		"copies": strconv.Itoa(copies),
	})
	s.bus.Publish(eventbus.DataChanged, nil)

	return added, nil
}
