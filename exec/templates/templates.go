// Package templates embeds the sources of the algorithm templates. The
// template packages are also compiled into the host binary, which keeps
// them type checked.
package templates

import "embed"

//go:embed filterer/*.go comparator/*.go
var FS embed.FS

const (
	FiltererDir   = "filterer"
	ComparatorDir = "comparator"
)
