package handler

import (
	"io/fs"
	"net/http"
)

// StaticHandler はログイン画面とダッシュボードの静的ファイルを配信する。
type StaticHandler struct {
	fsys   fs.FS
	assets http.Handler
}

// NewStaticHandler はStaticHandlerを生成する。
func NewStaticHandler(fsys fs.FS) *StaticHandler {
	return &StaticHandler{
		fsys:   fsys,
		assets: http.FileServerFS(fsys),
	}
}

// Index はログイン画面を返す。
// GET /
func (h *StaticHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, h.fsys, "index.html")
}

// Dashboard はダッシュボード画面を返す。認証はページ内のスクリプトが/api/userで行う。
// GET /dashboard
func (h *StaticHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, h.fsys, "dashboard.html")
}

// Assets はscripts/とstyles/配下のファイルを返す。
func (h *StaticHandler) Assets(w http.ResponseWriter, r *http.Request) {
	h.assets.ServeHTTP(w, r)
}
