// internal/catalog/service.go
package catalog

import (
	"context"

	"bookedin/internal/models"
)

// Service defines the interface for catalog intake. Copies are created here
// and mutated afterwards only by the circulation engine; this core never
// deletes them.
type Service interface {
	// AddBook inserts one copy row per physical copy, all available. Adding
	// an ISBN that already exists simply adds more copies of that title.
	AddBook(ctx context.Context, isbn, title, author string, copies int) ([]models.BookCopy, error)
}
