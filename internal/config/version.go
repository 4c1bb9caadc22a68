package config

// Version is the opsapi binary version.
// Set at build time via: -ldflags "-X github.com/coesco/opsapi/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
