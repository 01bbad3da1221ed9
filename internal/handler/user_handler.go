package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/idgate/internal/middleware"
	"github.com/hitoshi/idgate/internal/model"
)

// UserHandler は認証済みユーザー向けのHTTPハンドラー。
type UserHandler struct{}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	LastLogin time.Time `json:"lastLogin"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Me はBearerトークンで解決した現在のユーザーを返す。
// GET /api/user
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, model.NewAccessTokenRequiredError())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, meResponse{
		User: userResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Picture:   user.Picture,
			CreatedAt: user.CreatedAt,
			LastLogin: user.LastLogin,
		},
	})
}

// Logout はログアウトを受け付ける。
// POST /api/logout
//
// セッションはステートレスなため、サーバー側でトークンは失効させない。
// クライアントが保持しているトークンを破棄する。
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, logoutResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}
