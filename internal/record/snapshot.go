package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// DomainSnapshot separates snapshot digests from any other hash use.
const DomainSnapshot = "signup/snapshot/v1"

// Snapshot is a frozen copy of a client taken when a contract is
// generated. Fields are unexported and accessors return copies, so a
// snapshot cannot change after NewSnapshot returns, whatever happens to
// the client it was taken from.
type Snapshot struct {
	clientID  int64
	name      string
	createdAt time.Time
	fields    Fields
	takenAt   time.Time
}

// NewSnapshot deep-copies c and stamps it with takenAt.
func NewSnapshot(c Client, takenAt time.Time) Snapshot {
	return Snapshot{
		clientID:  c.ID,
		name:      c.Name,
		createdAt: c.CreatedAt,
		fields:    c.Fields.Clone(),
		takenAt:   takenAt.UTC().Truncate(time.Second),
	}
}

// ClientID returns the customer number of the frozen client.
func (s Snapshot) ClientID() int64 { return s.clientID }

// Name returns the client name as it was when the snapshot was taken.
func (s Snapshot) Name() string { return s.name }

// CreatedAt returns when the client record was first stored.
func (s Snapshot) CreatedAt() time.Time { return s.createdAt }

// TakenAt returns the snapshot time in UTC, truncated to the second.
func (s Snapshot) TakenAt() time.Time { return s.takenAt }

// Fields returns a copy of the frozen extra fields.
func (s Snapshot) Fields() Fields { return s.fields.Clone() }

// Value returns the frozen value for key.
func (s Snapshot) Value(key string) (string, bool) { return s.fields.Get(key) }

// IsZero reports whether the snapshot was never taken.
func (s Snapshot) IsZero() bool { return s.clientID == 0 && s.takenAt.IsZero() }

// canonicalMap is the digest input. Field order is part of the snapshot,
// so fields are kept as an array rather than an object.
func (s Snapshot) canonicalMap() map[string]any {
	fields := make([]any, len(s.fields))
	for i, f := range s.fields {
		fields[i] = []any{f.Key, f.Value}
	}
	return map[string]any{
		"client_id":  s.clientID,
		"name":       s.name,
		"created_at": s.createdAt.UTC().Format(TimeLayout),
		"taken_at":   s.takenAt.Format(TimeLayout),
		"fields":     fields,
	}
}

// Digest returns the hex SHA-256 of the canonical snapshot with domain
// separation: SHA256(domain || 0x00 || canonical JSON).
func (s Snapshot) Digest() (string, error) {
	canonical, err := MarshalCanonical(s.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("snapshot digest: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(DomainSnapshot))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MarshalJSON encodes the snapshot for the contract log.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		ClientID:  s.clientID,
		Name:      s.name,
		CreatedAt: s.createdAt.UTC().Format(TimeLayout),
		TakenAt:   s.takenAt.Format(TimeLayout),
		Fields:    s.fields.Clone(),
	})
}

// UnmarshalJSON restores a snapshot stored in the contract log.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	createdAt, err := time.Parse(TimeLayout, raw.CreatedAt)
	if err != nil {
		return fmt.Errorf("snapshot created_at: %w", err)
	}
	takenAt, err := time.Parse(TimeLayout, raw.TakenAt)
	if err != nil {
		return fmt.Errorf("snapshot taken_at: %w", err)
	}
	*s = Snapshot{
		clientID:  raw.ClientID,
		name:      raw.Name,
		createdAt: createdAt,
		fields:    raw.Fields.Clone(),
		takenAt:   takenAt,
	}
	return nil
}

type snapshotJSON struct {
	ClientID  int64  `json:"client_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	TakenAt   string `json:"taken_at"`
	Fields    Fields `json:"fields"`
}
