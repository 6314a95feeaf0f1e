// Package services defines shared utilities consumed by the upload, versioning,
// workflow, and notification components.
//
// Key responsibilities:
//   - Context helpers that stamp asset version IDs, upload session IDs, actor
//     identities, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every component reports
//     failures in the same taxonomy, and Code to map them onto transport codes.
//
// Use these helpers when wiring new components so error classification and
// observability stay uniform across the engine.
package services
