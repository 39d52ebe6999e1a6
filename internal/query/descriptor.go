package query

import (
	"encoding/json"
	"fmt"
	"os"
)

// Descriptor is the persisted output of the prepare phase: everything the
// execute phase needs to replay a query from the cache alone. It is
// immutable once written; re-executing it is safe because execution is pure
// on cache contents.
type Descriptor struct {
	Dumpfile       string   `json:"dumpfile"`
	QIDs           []uint64 `json:"qids"`
	DependencyQIDs []uint64 `json:"dependency_qids"`
}

// Save writes the descriptor to path as JSON.
func (d *Descriptor) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write descriptor %s: %w", path, err)
	}
	return nil
}

// LoadDescriptor reads a descriptor written by Save.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor %s: %w", path, err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", path, err)
	}
	return &d, nil
}
