// Package version reports the build of the streamfetch daemon.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/streamfetch/version.Version=1.2.0" ./cmd/streamfetchd
//
// Values left empty are filled from the module build info when available.
package version
