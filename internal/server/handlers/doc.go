// Package handlers contains HTTP handlers for the DocShip HTTP API.
//
// This package provides handlers for:
//   - Push webhook reception with HMAC signature validation
//   - Daemon status and queue introspection
//   - Build history queries over the event-store projection
//   - Shared response helper functions
//
// All handlers follow a consistent pattern for error handling and response formatting,
// using the foundation/errors package for structured error handling and the
// server/responses package for standardized HTTP responses. Handlers depend on
// narrow interfaces satisfied by the daemon, never on the daemon package itself.
package handlers
