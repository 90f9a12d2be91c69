// Package contract turns one client record into a signed contract PDF.
//
// A Session walks a fixed sequence of states:
//
//	Selected -> Snapshotted -> Signing -> Rendered
//
// and may be abandoned from any non-terminal state. The client is read
// exactly once and frozen into a record.Snapshot, so later edits never
// change a generated contract. Document construction (BuildDocument) is
// a pure function of snapshot, signature, template and branding; the
// only file-system effect is one atomic placement at the output path.
package contract
