// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHash はCredential Store以外から参照しない。
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	RegisteredAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Principal はリクエストを行っている認証済みユーザーを表す。
type Principal struct {
	ID       string
	Username string
}
