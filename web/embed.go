// Package web embeds the static churn dashboard page.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed dist
var distFS embed.FS

// Assets serves the embedded dashboard and falls back to index.html for
// paths that do not name a file.
type Assets struct {
	root fs.FS
}

// NewAssets returns the embedded dist directory.
func NewAssets() (*Assets, error) {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		return nil, err
	}
	return &Assets{root: sub}, nil
}

// ServeHTTP implements http.Handler.
func (a *Assets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" || !a.exists(name) {
		http.ServeFileFS(w, r, a.root, "index.html")
		return
	}
	http.FileServerFS(a.root).ServeHTTP(w, r)
}

func (a *Assets) exists(name string) bool {
	info, err := fs.Stat(a.root, name)
	return err == nil && !info.IsDir()
}
