// Package migrations carries the goose SQL files for the trips schema.
package migrations

import "embed"

// FS is read by goose.NewProvider at server start and by testutil.Migrate.
//
//go:embed *.sql
var FS embed.FS
