// Command assetflow runs the asset versioning daemon and offers offline
// inspection of its database.
//
// `assetflow serve` starts the HTTP API and the upload session sweep.
// `lineage`, `show`, `history`, and `audit` read the local store directly, so
// they work whether or not a daemon is running. `config init` writes a sample
// configuration file and `preflight` checks the daemon's dependencies.
package main
