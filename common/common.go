// Package common provides package-wide constants shared by the service
// binaries and the HTTP/metrics servers.
package common

// PackageName is the canonical service name, used as the metrics namespace
// and in log output.
const PackageName = "earnout"

// Version is the service version. Overridden at build time via
// -ldflags "-X github.com/settleline/earnout/common.Version=...".
var Version = "dev"
