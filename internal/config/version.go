package config

// Version is the dashport binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/dashport/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
