// Package auth resolves request credentials to an identity: an actor
// (person, chat, owner or none) acting on a project.
//
// # Authentication Schemes
//
// The package supports four schemes, run as an ordered chain:
//
//   - User secret: public-key + user-name + user-secret headers. The
//     secret is checked against a bcrypt hash; an unknown username and a
//     wrong secret are indistinguishable to the caller.
//
//   - Private key: the private-key header alone authenticates the
//     project. The acting person falls back from the user-name header to
//     the target chat's admin to the project's first person, degrading to
//     project-level access (ActorNone) on an empty project.
//
//   - Chat access: a chat authenticates as itself with its access key
//     (public-key side) or by id under the private key.
//
//   - Session token: an opaque "st-" token minted for websocket clients.
//     Reading a live token slides its expiry forward.
//
// Collaborator admin access uses HS256 JWTs instead (see token.go) and
// produces an ActorOwner identity.
//
// # Inactive Projects
//
// Every scheme refuses a deactivated project with ErrInactive, after
// alerting the project owner at most once per 24h (InactiveWatcher).
//
// # Caching
//
// Chain results are cached by credential set, positive and negative
// alike, either in process (MemoryCache) or in Redis (RedisCache) when
// several instances share traffic. Inactive-project refusals are not
// cached so the alert cooldown logic always runs.
package auth
