package model

import (
	"fmt"
	"net/http"
)

// APIError はクライアントに返すエラーを表す。
// Messageはレスポンスボディのerrorフィールドにそのまま載る。
// Errには原因となった内部エラーを保持し、ログと errors.Is での判定にのみ使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // クライアント向けメッセージ
	Category string // カテゴリ: auth, validation, system
	Status   int    // HTTPステータスコード
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeInvalidGoogleToken  = "INVALID_GOOGLE_TOKEN"
	ErrCodeAccessTokenRequired = "ACCESS_TOKEN_REQUIRED"
	ErrCodeInvalidSession      = "INVALID_SESSION_TOKEN"
	ErrCodeEmailConflict       = "EMAIL_CONFLICT"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewInvalidGoogleTokenError はIdPアサーションが無効な場合のエラーを生成する。
// 署名不正、audience不一致、期限切れ、リクエスト不正を区別せず同じ応答にする。
func NewInvalidGoogleTokenError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGoogleToken,
		Message:  "Invalid Google token",
		Category: "auth",
		Status:   http.StatusUnauthorized,
		Err:      cause,
	}
}

// NewAccessTokenRequiredError はBearerトークンが無い場合のエラーを生成する。
func NewAccessTokenRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessTokenRequired,
		Message:  "Access token required",
		Category: "auth",
		Status:   http.StatusUnauthorized,
	}
}

// NewInvalidSessionError はセッショントークンが無効・期限切れ・解決不能な場合のエラーを生成する。
func NewInvalidSessionError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSession,
		Message:  "Invalid or expired token",
		Category: "auth",
		Status:   http.StatusForbidden,
		Err:      cause,
	}
}

// NewEmailConflictError は別のGoogleアカウントが同じメールアドレスで登録済みの場合のエラーを生成する。
func NewEmailConflictError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeEmailConflict,
		Message:  "Email is already linked to another account",
		Category: "auth",
		Status:   http.StatusConflict,
		Err:      cause,
	}
}

// NewRateLimitedError はレート制限超過時のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests",
		Category: "system",
		Status:   http.StatusTooManyRequests,
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Status:   http.StatusInternalServerError,
	}
}
