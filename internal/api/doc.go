// Package api exposes the REST surface used by the chat frontend: the chat
// endpoint itself, wallet tool callbacks, and session history retrieval. It
// also wires request metrics and the optional API key guard.
package api
