// Package version holds the client identity sent with every request.
package version

// Name identifies the client in User-Agent headers.
const Name = "ecosystems-cli"

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=...".
var Version = "1.0.0"

// UserAgent returns the fixed User-Agent value, e.g. "ecosystems-cli (1.0.0)".
func UserAgent() string {
	return Name + " (" + Version + ")"
}
