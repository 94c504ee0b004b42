package auth

import "time"

const (
	RoleAdmin     = "admin"
	RoleLibrarian = "librarian"
	RoleMember    = "member"
)

func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleLibrarian || r == RoleMember
}

// IsStaff: 貸出申請の承認や返却確認ができるロール
func IsStaff(r string) bool { return r == RoleAdmin || r == RoleLibrarian }

// User は users テーブルの1行を表す
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsDisabled   bool
	CreatedAt    time.Time
}

type UserResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsDisabled bool      `json:"is_disabled"`
	CreatedAt  time.Time `json:"created_at"`
}

func (u *User) Response() UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		IsDisabled: u.IsDisabled,
		CreatedAt:  u.CreatedAt,
	}
}
