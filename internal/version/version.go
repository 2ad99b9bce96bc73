// Package version reports the pickdesk build version. Release builds set it
// with ldflags:
//
//	go build -ldflags "-X github.com/ramonehamilton/pickdesk/internal/version.Version=v0.3.0" ./cmd/pickdesk
package version

// Version defaults to "dev" for local builds.
var Version = "dev"

// GetVersion returns the build version.
func GetVersion() string {
	return Version
}
