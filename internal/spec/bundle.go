package spec

import (
	"embed"
	"io/fs"
)

//go:embed apis/*.yaml
var bundled embed.FS

// Bundled returns the API descriptions shipped with the binary, rooted so
// that "<name>.yaml" resolves directly.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "apis")
	if err != nil {
		panic(err)
	}
	return sub
}
