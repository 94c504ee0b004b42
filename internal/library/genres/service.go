// Package genres は本の登録で選べるジャンルの一覧を管理する。
package genres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"LIBRIS-backend/internal/library/books"
	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
)

type Service struct {
	store *Store
	log   *zap.Logger
}

func NewService(conn *db.Conn, log *zap.Logger) *Service {
	return &Service{store: NewStore(conn), log: log}
}

func parseBoolish(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "1" || s == "true" || s == "yes" || s == "all"
}

// 本と同じ表記に揃える（"science fiction" -> "Science Fiction"）
func normalizeName(name string) (string, error) {
	n := books.NormalizeGenre(name)
	if n == "" {
		return "", apperr.ErrInvalid("name is required")
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, all string) ([]Genre, error) {
	return s.store.List(ctx, parseBoolish(all))
}

func (s *Service) Get(ctx context.Context, id int64) (*Genre, error) {
	g, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound("genre not found")
	}
	return g, err
}

func (s *Service) Create(ctx context.Context, name string) (*Genre, error) {
	n, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	g, err := s.store.Create(ctx, n)
	if err != nil {
		if db.IsDuplicate(err) {
			return nil, apperr.ErrConflict("genre already exists")
		}
		return nil, err
	}
	s.log.Info("genre created", zap.Int64("genre_id", g.ID), zap.String("name", g.Name))
	return g, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateGenreRequest) (*Genre, error) {
	n, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, id, n, in.IsDisabled); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, apperr.ErrNotFound("genre not found")
		case db.IsDuplicate(err):
			return nil, apperr.ErrConflict("genre already exists")
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Disable(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound("genre not found")
	}
	return err
}
