// Package session implements the conversation trigger lifecycle: request
// validation, lazy user-document creation, session lookup or creation,
// dispatch to the use case's orchestrator, and persistence of the grown
// transcript.
package session
