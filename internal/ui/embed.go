// Package ui contains the embedded browser dashboard: a grid of live charts
// fed by the /v1/events stream and the three page controls.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var assets embed.FS

// FS returns a http.FileSystem rooted at the dashboard assets.
func FS() http.FileSystem {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		return http.FS(assets)
	}
	return http.FS(sub)
}
