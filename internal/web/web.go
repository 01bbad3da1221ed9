// Package web はログイン画面とダッシュボードの静的ファイルを埋め込みで提供する。
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var staticFiles embed.FS

// FS は静的ファイルのルート（index.html、dashboard.html、scripts/、styles/）を返す。
func FS() fs.FS {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// 埋め込みのパスはビルド時に確定するため到達しない
		panic(err)
	}
	return sub
}
