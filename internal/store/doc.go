// Package store provides SQLite-backed durable storage for client records.
//
// The store holds:
//   - Clients: customer number, name and creation time
//   - Client fields: the ordered extra fields of each client (side table
//     keyed by client id and position, never extra columns)
//   - Sequences: the customer number high-water mark
//   - Settings: branding values handed to contract rendering
//   - Contracts: a log of generated contracts with their frozen snapshot
//
// # Critical Patterns
//
// Single logical lock: every mutation (Create, AddField, Update, Delete,
// SaveBranding, RecordContract) holds the store mutex across its whole
// read-modify-write and runs inside one SQL transaction. Two mutations
// can never both observe the same pre-state.
//
// Never partially persisted: validation happens before the transaction
// starts; any failure inside it rolls everything back.
//
// Customer numbers are never reissued: the sequences table keeps the
// highest number ever handed out, independent of deletions.
//
// Deterministic reads: ListAll orders by id ASC, fields by position ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The contracts table has no foreign key to clients on purpose: deleting
// a client leaves its generated contracts in the log.
package store
