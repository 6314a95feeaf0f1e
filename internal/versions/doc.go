// Package versions implements the asset version graph: group-key
// canonicalisation, version minting under a per-group serialization point,
// and lineage reads ordered by version number.
//
// Minting is delegated to store.FinalizeSession so the session completion and
// the new version commit together. The in-process KeyedLock narrows contention
// before the database lock is taken.
package versions
