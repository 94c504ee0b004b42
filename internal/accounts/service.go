package accounts

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/paging"
)

type Service struct {
	conn  *db.Conn
	store *Store
	auth  *auth.Service
	log   *zap.Logger
}

func NewService(conn *db.Conn, authSvc *auth.Service, log *zap.Logger) *Service {
	return &Service{conn: conn, store: NewStore(conn), auth: authSvc, log: log}
}

func (s *Service) List(ctx context.Context, role, q string, p paging.Page) (paging.List[auth.UserResponse], error) {
	q = cases.Lower(language.Und).String(strings.TrimSpace(q))
	rows, total, err := s.store.List(ctx, role, q, p)
	if err != nil {
		return paging.List[auth.UserResponse]{}, err
	}
	items := make([]auth.UserResponse, 0, len(rows))
	for _, u := range rows {
		items = append(items, u.Response())
	}
	return paging.NewList(items, total, p), nil
}

func (s *Service) CreateLibrarian(ctx context.Context, in CreateLibrarianRequest) (auth.UserResponse, error) {
	u, err := s.auth.Register(ctx, auth.RegisterInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Role:     auth.RoleLibrarian,
	})
	if err != nil {
		return auth.UserResponse{}, err
	}
	s.log.Info("librarian created", zap.Int64("user_id", u.ID))
	return u.Response(), nil
}

// Update: 管理者は自分自身を無効化できない
func (s *Service) Update(ctx context.Context, actor auth.Principal, id int64, in UpdateUserRequest) (auth.UserResponse, error) {
	var out *auth.User
	err := db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		u, err := lockUserTx(ctx, tx, id, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.ErrNotFound("user not found")
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperr.ErrInvalid("name must not be empty")
			}
			u.Name = name
		}
		if in.Email != nil {
			email := auth.NormalizeEmail(*in.Email)
			if err := auth.ValidateEmail(email); err != nil {
				return err
			}
			u.Email = email
		}
		if in.IsDisabled != nil {
			if *in.IsDisabled && u.ID == actor.UserID {
				return apperr.ErrInvalid("you cannot disable your own account")
			}
			u.IsDisabled = *in.IsDisabled
		}
		if err := updateUserTx(ctx, tx, u); err != nil {
			if db.IsDuplicate(err) {
				return apperr.ErrConflict("email already registered")
			}
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return auth.UserResponse{}, err
	}
	return out.Response(), nil
}

// Delete: 未返却の貸出がある利用者は消せない。自分自身も不可。
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id int64) error {
	if id == actor.UserID {
		return apperr.ErrInvalid("you cannot delete your own account")
	}
	err := db.RunInTx(ctx, s.conn.DB, nil, func(ctx context.Context, tx db.DBTX) error {
		u, err := lockUserTx(ctx, tx, id, s.conn.ForUpdate())
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.ErrNotFound("user not found")
		}
		n, err := countOpenBorrowsTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrConflict("user has unreturned borrows")
		}
		return deleteUserTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("user deleted", zap.Int64("user_id", id), zap.Int64("by", actor.UserID))
	return nil
}
