// Package migrations embeds SQL migration files into the binary.
//
// The agent runs from a single binary on the device; the schema ships
// inside it and is applied with database.DB.Migrate(ctx, migrations.FS).
package migrations

import "embed"

// FS holds every *.sql file in this directory at the root of the FS.
//
//go:embed *.sql
var FS embed.FS
