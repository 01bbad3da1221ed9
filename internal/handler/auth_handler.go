// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/idgate/internal/middleware"
	"github.com/hitoshi/idgate/internal/model"
)

// maxLoginBodyBytes はログインリクエストボディの上限。IDトークンは数KB程度に収まる。
const maxLoginBodyBytes = 64 << 10

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はIdPアサーションを検証し、ユーザーをアップサートしてセッショントークンを発行する。
	Login(ctx context.Context, assertion string) (*model.LoginResult, error)
}

// AuthHandler はGoogleサインインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

// loginUserResponse はログイン応答に含めるユーザー情報。
type loginUserResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

type googleLoginResponse struct {
	Success bool              `json:"success"`
	Token   string            `json:"token"`
	User    loginUserResponse `json:"user"`
}

// GoogleLogin はGoogleのIDトークンをセッショントークンに交換する。
// POST /auth/google
//
// ボディが読めない、tokenが無い場合も不正なトークンと同じ401を返す。
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	body := http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.NewInvalidGoogleTokenError(fmt.Errorf("failed to decode request: %w", err)))
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		middleware.WriteErrorResponse(w, model.NewInvalidGoogleTokenError(fmt.Errorf("token is required")))
		return
	}

	result, err := h.service.Login(r.Context(), req.Token)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, googleLoginResponse{
		Success: true,
		Token:   result.Token,
		User: loginUserResponse{
			ID:      result.User.ID,
			Name:    result.User.Name,
			Email:   result.User.Email,
			Picture: result.User.Picture,
		},
	})
}
