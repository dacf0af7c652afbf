// Package server holds the HTTP server configuration.
//
// The start command builds the Fiber app from Config.Fiber and listens on
// Config.Port. Every route registered after the auth middleware requires
// Config.ApiKey when it is set.
package server
