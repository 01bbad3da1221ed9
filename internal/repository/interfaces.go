// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/idgate/internal/model"
)

var (
	// ErrDuplicateKey は一意制約違反を表す。
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrDuplicateGoogleID はgoogle_idの一意制約違反を表す。
	// 同一subjectの初回ログインが並行した場合に発生する。
	ErrDuplicateGoogleID = fmt.Errorf("%w: google_id", ErrDuplicateKey)
	// ErrDuplicateEmail はemailの一意制約違反を表す。
	ErrDuplicateEmail = fmt.Errorf("%w: email", ErrDuplicateKey)
	// ErrUserNotFound は更新対象のユーザーが存在しない場合のエラー。
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByGoogleID はGoogleのsubjectでユーザーを取得する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Create はユーザーを作成する。
	// google_idまたはemailが既に存在する場合はErrDuplicateGoogleID/ErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateLastLogin はlast_loginのみを更新する。他のプロフィール項目は変更しない。
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
