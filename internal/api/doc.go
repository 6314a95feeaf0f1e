// Package api defines wire-format types and converters for the HTTP API
// layer. It translates store models and upload handles into transport-friendly
// DTOs so clients do not couple to internal types.
//
// # Key Types
//
// AssetVersion: one version with lineage, workflow, and publication fields.
//
// UploadSession / InitiateResponse / PartDestination: chunked upload state.
//
// NotificationRecord and AuditEvent: append-only history entries.
//
// ErrorResponse: the error envelope carrying a message and taxonomy code.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds in UTC and are omitted when unset.
package api
