// Package record defines the client record model shared by the store,
// the spreadsheet export and the contract pipeline.
//
// A Client has a required name, an immutable customer number and an
// ordered, open-ended list of extra fields. Field keys are unique within
// one client and may repeat across clients.
//
// # Normalization
//
// Names and field keys are trimmed and NFC-normalized before validation,
// so two keys that render identically cannot coexist on one client.
// Values are stored as given.
//
// # Errors
//
// All failures surfaced by the core carry a Code (see errors.go):
//   - VALIDATION: bad or missing input, reported before any write
//   - NOT_FOUND: reference to an unknown customer number
//   - IO: unwritable destination or inaccessible storage
//   - EXHAUSTED: customer number space exhausted
package record
