// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントでログインしたユーザーを表す。
// GoogleIDとEmailはストア側で一意制約を持つ。
type User struct {
	ID        string
	GoogleID  string // IdPが払い出すsubject。作成後は変更しない
	Email     string
	Name      string
	Picture   string // 未設定の場合は空文字列
	CreatedAt time.Time
	LastLogin time.Time
}

// IdentityClaims はIdPのアサーション検証後に得られるプロフィール情報を表す。
type IdentityClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Issuer        string
}

// LoginResult はログイン成功時に返すセッショントークンとユーザーを表す。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
	Created   bool // 今回のログインでユーザーが新規作成された場合true
}
