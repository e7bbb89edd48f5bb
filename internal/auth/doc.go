// Package auth authenticates API callers.
//
// Users log in with a username and password (bcrypt hashes live in the
// store) and receive an HS256 JWT issued by "tally" whose "sub" claim is the
// user ID and whose "name" claim is the username.
// HTTPAuthMiddleware verifies the bearer token on every API request and
// attaches an AuthContext, which handlers read with FromContext. Actor gives
// the name recorded in audit entries.
package auth
