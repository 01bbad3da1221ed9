package handler

import (
	"net/http"

	"github.com/hitoshi/idgate/internal/middleware"
)

// ConfigHandler はフロントエンドが必要とする公開設定を返す。
type ConfigHandler struct {
	googleClientID string
}

// NewConfigHandler はConfigHandlerを生成する。
func NewConfigHandler(googleClientID string) *ConfigHandler {
	return &ConfigHandler{googleClientID: googleClientID}
}

type configResponse struct {
	GoogleClientID string `json:"googleClientId"`
}

// Get はGoogleのクライアントIDを返す。
// GET /config
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, configResponse{GoogleClientID: h.googleClientID})
}
