// Package workflow implements the editorial state machine for asset versions.
//
// Every status change goes through Machine, which checks the transition table,
// applies the change with an optimistic check on the expected current status,
// and appends an audit event in the same transaction. After the change commits
// the machine fans out the matching notification event and, for publication,
// optionally requests processing. Side effect failures are logged and never
// revert the committed status.
//
// Re-requesting a transition that is already applied returns the stored
// version without touching the store or emitting notifications.
package workflow
