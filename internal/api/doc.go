// Package api exposes the task executor over HTTP: callers submit a named
// job kind with a JSON payload, receive an identifier, and poll a status
// endpoint until the task completes. The executor itself knows nothing
// about HTTP; this package is one collaborator among possible others.
package api
