// Package common holds process-wide helpers shared by the commands.
package common

// PackageName is used as the Prometheus namespace and default log service tag.
const PackageName = "marketplace"

// Version is set at build time with -ldflags "-X github.com/lap-market/marketplace-backend/common.Version=..."
var Version = "dev"
