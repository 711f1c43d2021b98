// Package appfs exposes static assets compiled into the binaries:
// database migrations, email templates and the common passwords list.
package appfs

import "embed"

//go:embed common-passwords.txt.gz migrations all:templates
var FS embed.FS
