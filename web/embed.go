// Package web holds the dashboard templates and browser assets compiled into
// the binary.
package web

import (
	"embed"
	"io/fs"
)

// Templates embeds the layouts, partials and pages.
//
//go:embed templates/**/*.html
var Templates embed.FS

//go:embed static/**/*
var static embed.FS

// Static returns the asset tree rooted at static/, as served under /static/.
func Static() (fs.FS, error) {
	return fs.Sub(static, "static")
}
