// Package notifications implements the notification dispatcher: it resolves
// recipient sets per lifecycle event, submits one message per dispatch to the
// mail relay, and appends a NotificationRecord with the delivery outcome.
//
// When no mail endpoint is configured a noop mailer is used, so dispatches
// are still recorded as sent. Delivery failures never roll back the workflow
// change that triggered them.
package notifications
