// Package assets embeds the static files shipped with the binaries.
package assets

import "embed"

const (
	EmailTemplatesDir = "templates/email"
	MigrationsDir     = "migrations"
)

//go:embed all:templates migrations
var FS embed.FS
