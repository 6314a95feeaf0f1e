// Package preflight provides readiness checks for the filesystem paths and
// collaborators assetflow depends on.
//
// `assetflow preflight` runs RunAll before an operator starts the daemon.
// Optional collaborators (mail relay, transcoder) are skipped when their
// endpoint is not configured.
package preflight
