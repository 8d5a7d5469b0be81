// Package migrations embeds the goose SQL migrations for the durable
// metering schema: wallets, credit packages, the ledger, feature
// definitions and rate limit rules.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the directory goose reads migrations from within FS.
const Dir = "."
