package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"bookedin/internal/models"
	"bookedin/internal/storage"
)

type memberDirectory struct {
	ext sqlx.ExtContext
}

func (s *memberDirectory) Create(ctx context.Context, member *models.Member) error {
	query, args, err := goqu.Dialect(dialectPostgres).
		Insert(tableMembers).
		Prepared(true).
		Rows(goqu.Record{
			"username":      member.Username,
			"full_name":     member.FullName,
			"email":         member.Email,
			"password_hash": member.PasswordHash,
			"salt":          member.Salt,
			"registered_at": member.RegisteredAt,
		}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := s.ext.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *memberDirectory) GetByUsername(ctx context.Context, username string) (*models.Member, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableMembers).
		Prepared(true).
		Select("username", "full_name", "email", "password_hash", "salt", "registered_at").
		Where(goqu.Ex{"username": username}).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}

	var member models.Member
	if err := sqlx.GetContext(ctx, s.ext, &member, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query member: %w", err)
	}
	return &member, nil
}
