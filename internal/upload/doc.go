// Package upload implements the chunked upload session manager.
//
// A session reserves a multipart upload in object storage, hands out
// presigned part destinations, and records each reported part token keyed by
// part number. Completion checks that every part is present, asks storage to
// assemble the object, and mints the asset version through the version graph.
// Completion is idempotent: a completed session keeps a link to the version
// it produced and returns it on every later call.
//
// Work on one session is serialized in process; version numbers are assigned
// under the graph's per-group lock.
package upload
