// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/idgate/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// SessionVerifier はセッショントークンの検証に必要なインターフェース。
type SessionVerifier interface {
	// VerifySession はトークンを検証し、ストアから再取得した現在のユーザーを返す。
	VerifySession(ctx context.Context, token string) (*model.User, error)
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// トークンが無い場合は401、無効・期限切れ・ユーザー不在の場合は403、ストア障害は500を返す。
// 認証済みユーザーをリクエストコンテキストに注入する。
func NewBearerAuthMiddleware(verifier SessionVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteErrorResponse(w, model.NewAccessTokenRequiredError())
				return
			}

			user, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				WriteError(w, r, err)
				return
			}
			if user == nil {
				WriteErrorResponse(w, model.NewInvalidSessionError(nil))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// BearerToken はAuthorizationヘッダーから"Bearer <token>"形式のトークンを取り出す。
// ヘッダーが無い、またはスキームがBearerでない場合は空文字列を返す。
func BearerToken(r *http.Request) string {
	fields := strings.Fields(r.Header.Get("Authorization"))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// Bearer認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	if user, ok := UserFromContext(ctx); ok && user.ID != "" {
		return user.ID, nil
	}
	if info := requestInfoFromContext(ctx); info != nil && info.userID != "" {
		return info.userID, nil
	}
	return "", fmt.Errorf("user ID not found in context")
}

// ContextWithUser はコンテキストにユーザーを注入する。
// ロギングミドルウェアの内側で呼ばれた場合は、アクセスログにもユーザーIDを伝える。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if info := requestInfoFromContext(ctx); info != nil && user != nil {
		info.userID = user.ID
	}
	return context.WithValue(ctx, userContextKey, user)
}
