package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/idgate/internal/model"
)

// --- テスト共通のモック定義 ---

type mockAuthService struct {
	loginFn func(ctx context.Context, assertion string) (*model.LoginResult, error)
}

func (m *mockAuthService) Login(ctx context.Context, assertion string) (*model.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, assertion)
	}
	return nil, model.NewInvalidGoogleTokenError(nil)
}

type mockSessionVerifier struct {
	verifyFn func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockSessionVerifier) VerifySession(ctx context.Context, token string) (*model.User, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return nil, model.NewInvalidSessionError(nil)
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// decodeJSON はレスポンスボディをmap[string]anyとして読み込む。
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", w.Body.String(), err)
	}
	return body
}
