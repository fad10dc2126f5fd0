package templates

import "embed"

// EmbeddedTemplates provides read-only access to the prompt templates compiled into the binary.
//
//go:embed *.tmpl
var EmbeddedTemplates embed.FS
