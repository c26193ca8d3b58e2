// Package migrations embeds the session store schema so a deployed
// binary can migrate its database without carrying SQL files alongside.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
