// Package migrations holds the gateway's own postgres schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
