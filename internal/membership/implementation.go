// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bookedin/internal/eventbus"
	"bookedin/internal/models"
	"bookedin/internal/storage"
)

// service implements the Service interface.
type service struct {
	store       storage.Store
	bus         *eventbus.Bus
	logger      *zap.Logger
	tracer      trace.Tracer
	rateLimiter *rate.Limiter
	now         func() time.Time
}

// NewService creates a new membership service instance.
func NewService(store storage.Store, bus *eventbus.Bus, logger *zap.Logger) Service {
	return &service{
		store:       store,
		bus:         bus,
		logger:      logger,
		tracer:      otel.Tracer("bookedin/membership"),
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute), 5), // 5 registrations per minute
		now:         time.Now,
	}
}

// Register creates a new member with a salted Argon2id password hash.
func (s *service) Register(ctx context.Context, username, fullName, email, password string) (*models.Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.register",
		trace.WithAttributes(attribute.String("member.username", username)),
	)
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	member := &models.Member{
		Username:     username,
		FullName:     fullName,
		Email:        email,
		PasswordHash: passwordHash,
		Salt:         salt,
		RegisteredAt: s.now(),
	}
	if err := s.store.Members().Create(ctx, member); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}

	s.logger.Info("member registered",
		zap.String("username", username),
		zap.String("email", email),
	)
	s.bus.Publish(eventbus.MemberAdded, eventbus.Payload{"username": username})
	s.bus.Publish(eventbus.DataChanged, nil)

	return member, nil
}

// GetMember retrieves a member by username.
func (s *service) GetMember(ctx context.Context, username string) (*models.Member, error) {
	ctx, span := s.tracer.Start(ctx, "membership.get_member",
		trace.WithAttributes(attribute.String("member.username", username)),
	)
	defer span.End()

	member, err := s.store.Members().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("query member: %w", err)
	}
	return member, nil
}
