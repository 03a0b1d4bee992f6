// internal/membership/service.go
package membership

import (
	"context"

	"bookedin/internal/models"
)

// Service defines the interface for the membership service. Authentication
// and profile editing live outside this core; the circulation engine only
// needs registration and borrower resolution.
type Service interface {
	Register(ctx context.Context, username, fullName, email, password string) (*models.Member, error)
	GetMember(ctx context.Context, username string) (*models.Member, error)
}
