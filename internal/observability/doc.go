// Package observability builds the shared zap logger for the API.
//
// Log level and output format are driven by configuration so local
// runs can use the human-readable console encoder while deployments
// keep structured JSON.
package observability
