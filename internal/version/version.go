package version

// Version is the release identifier reported by the CLI and the
// control API.
const Version = "0.2.0"
