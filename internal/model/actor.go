package model

import (
	"fmt"
	"strings"
)

// Role は認証済みユーザーのロールです
type Role string

const (
	// RoleUser は会場を予約する一般ユーザーです
	RoleUser Role = "user"
	// RoleClient は会場を掲載するオーナーです
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
	// RoleSystem はバッチ処理などのシステム操作を表します
	RoleSystem Role = "system"
)

// ParseRole parses a role coming from the auth collaborator. "system" is never accepted from outside.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleClient, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Actor は操作を要求した主体です
type Actor struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// SystemActor returns the actor used by scheduled jobs.
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsSystem() bool {
	return a.Role == RoleSystem
}

// IsAnonymous はゲスト(未ログイン)かどうかを返します
func (a Actor) IsAnonymous() bool {
	return a.UserID == 0 && a.Role != RoleSystem
}
