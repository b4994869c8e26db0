// Package storage opens the relational database behind the membership and
// permission grant stores and owns their schema.
//
// Postgres (lib/pq) is the production backend. SQLite (go-sqlite3) runs the
// same statements for local single-node use and for tests; both dialects
// share `$n` placeholders, RETURNING, and explicit timestamps so the stores
// never branch on the driver.
//
// Uniqueness is enforced by the database, not by the stores:
//
//   - one membership per (profile, organization)
//   - one MAIN_ADMIN membership per organization (partial unique index)
//   - one grant per (organization, profile, permission)
//
// IsUniqueViolation and IsForeignKeyViolation classify driver errors so the
// stores can turn them into Conflict and NotFound.
package storage
