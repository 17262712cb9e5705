// Package version holds build-time version information for wikimill binaries.
package version

// Values injected at build time via -ldflags.
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the git commit the binary was built from.
	Commit = "<unknown>"

	// Date is the build timestamp in RFC3339.
	Date = "<unknown>"
)
