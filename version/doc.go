// Package version reports the build version of apictl.
//
// Version and commit are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/apiclient/version.Version=1.0.0" ./cmd/apictl
//
// Unset values fall back to the module build info.
package version
