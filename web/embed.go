// Package web holds the ledger's page templates and browser assets.
package web

import "embed"

// TemplatesFS holds the layout and one template per ledger page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds style.css and app.js, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
