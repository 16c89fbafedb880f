// Package web embeds the HTML templates and static assets served by the
// HTTP server.
package web

import "embed"

// TemplatesFS holds the page templates and their shared partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the chart script.
//
//go:embed static/*
var StaticFS embed.FS
