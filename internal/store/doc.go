// Package store provides persistent storage for shoutbox using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces per concern:
//
//   - ProjectStore: tenants, credentials, collaborator roles
//   - PersonStore: tenant-scoped end users
//   - ChatStore: chats, memberships, messages, retention purge
//   - WebhookStore: outbound webhook registrations
//   - SessionStore: reconnect session tokens
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Tenant Isolation
//
// Every chat, person, message and webhook lookup is keyed by project. An id
// that exists but belongs to a different project resolves as ErrNotFound,
// never as a permission error, so callers cannot confirm the existence of
// another tenant's data.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: entity does not exist or is not visible to the tenant
//   - ErrDuplicate: a unique constraint would be violated
//
// All methods accept context.Context for cancellation support.
package store
