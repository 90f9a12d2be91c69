package record

import "time"

// ContractLogEntry records one rendered contract. The snapshot is the
// exact client state the document was generated from and survives the
// deletion of the client.
type ContractLogEntry struct {
	ID          string    `json:"id"`
	ClientID    int64     `json:"client_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Path        string    `json:"path"`
	Digest      string    `json:"digest"`
	Snapshot    Snapshot  `json:"snapshot"`
}
