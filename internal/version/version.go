// Package version provides the service version.
package version

import "fmt"

// Version is the service version. It should be kept in sync with the
// release tags.
var Version = "0.4.0"

// DevVersion is the developing version.
var DevVersion = "0.4.0"

func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return DevVersion
	}
	return Version
}

func GetMinorVersion(version string) string {
	for i := len(version) - 1; i >= 0; i-- {
		if version[i] == '.' {
			return version[:i]
		}
	}
	return version
}

func String() string {
	return fmt.Sprintf("v%s", Version)
}
