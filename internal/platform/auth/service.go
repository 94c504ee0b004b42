package auth

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/config"
	"LIBRIS-backend/internal/platform/db"
)

const minPasswordLen = 6

var errAuthFailed = apperr.ErrUnauthenticated("invalid email or password")

// Claims: sub にユーザーIDを文字列で入れる
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(conn *db.Conn, c config.AuthConfig) *Service {
	return &Service{
		store:  NewStore(conn),
		secret: []byte(c.JWTSecret),
		ttl:    c.TokenTTL,
		now:    time.Now,
	}
}

func (s *Service) Secret() []byte { return s.secret }

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// NormalizeEmail: 比較・保存はすべて小文字
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return apperr.ErrInvalid("invalid email")
	}
	return nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if in.Name == "" {
		return nil, apperr.ErrInvalid("name is required")
	}
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.ErrInvalid("password must be at least 6 characters")
	}
	if !ValidRole(in.Role) {
		return nil, apperr.ErrInvalid("invalid role")
	}

	exists, err := s.store.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return nil, apperr.ErrConflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if err := s.store.Create(ctx, u); err != nil {
		// 同時登録で UNIQUE に当たった場合
		if db.IsDuplicate(err) {
			return nil, apperr.ErrConflict("email already registered")
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, errAuthFailed
	}
	if u.IsDisabled {
		return "", nil, apperr.ErrUnauthenticated("account disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, errAuthFailed
	}

	token, err := s.IssueToken(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) IssueToken(u *User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.secret)
}

func (s *Service) Profile(ctx context.Context, id int64) (*User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrNotFound("user not found")
	}
	return u, nil
}

// EnsureAdmin は seed 用。同じメールの admin が既にいれば何もしない。
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*User, bool, error) {
	u, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		if u.Role != RoleAdmin {
			return nil, false, apperr.ErrConflict("email already used by a non-admin account")
		}
		return u, false, nil
	}
	u, err = s.Register(ctx, RegisterInput{Name: name, Email: email, Password: password, Role: RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// ParseToken: HS256 固定（none攻撃とか回避）
func ParseToken(secret []byte, tokenStr string) (int64, string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, "", err
	}
	if !token.Valid {
		return 0, "", errors.New("invalid token")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", errors.New("invalid sub")
	}
	if !ValidRole(claims.Role) {
		return 0, "", errors.New("invalid role")
	}
	return id, claims.Role, nil
}
