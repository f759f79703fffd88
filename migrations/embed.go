// Package migrations embeds the SQL schema migrations so cmd/migrate can
// run them without the files on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
