// Package daemon coordinates the long-running assetflow process.
//
// It wires configuration, the store, object storage, and the upload,
// workflow, notification, and processing services into a single lifecycle
// with flock-based locking to prevent multiple instances sharing one data
// directory. The daemon serves the HTTP API, exposes health and metrics, and
// runs the periodic sweep that aborts expired upload sessions.
//
// Keep orchestration logic here: business rules live in their respective
// packages while the daemon focuses on startup, shutdown, and transport.
package daemon
