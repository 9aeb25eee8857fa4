// Package auth provides JWT-based authentication for the tenantline API.
//
// Tokens are HS256-signed with the configured secret and carry the user ID in
// the "sub" claim. HTTPAuthMiddleware validates the bearer token, resolves the
// user from the store, and attaches it to the request context, where handlers
// read it back via FromContext.
package auth
