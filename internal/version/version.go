// Package version holds build information injected with ldflags:
//
//	go build -ldflags "-X github.com/Versifine/passthru/internal/version.Version=1.0.0 \
//	                   -X github.com/Versifine/passthru/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

var (
	Version = "dev"
	Commit  = "unknown"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String returns "version (commit) built time".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
