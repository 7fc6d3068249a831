package recordstore

import (
	"encoding/json"
	"fmt"

	"crmextract/internal/records"
)

// Snapshot is the persisted collection-of-collections: one ordered list per
// object type plus the time of the last successful upsert.
type Snapshot struct {
	Leads         []records.Record `json:"leads"`
	Contacts      []records.Record `json:"contacts"`
	Accounts      []records.Record `json:"accounts"`
	Opportunities []records.Record `json:"opportunities"`
	Tasks         []records.Record `json:"tasks"`

	// LastSync is unix milliseconds; 0 means never synced.
	LastSync int64 `json:"lastSync"`
}

// EmptySnapshot returns the initial shape: five empty collections and
// LastSync 0.
func EmptySnapshot() Snapshot {
	var s Snapshot
	s.normalize()
	return s
}

// normalize replaces nil collections with empty ones so the JSON form always
// carries all five arrays.
func (s *Snapshot) normalize() {
	for _, ot := range records.ObjectTypes {
		if p := s.list(ot); *p == nil {
			*p = []records.Record{}
		}
	}
}

func (s *Snapshot) list(ot records.ObjectType) *[]records.Record {
	switch ot {
	case records.Leads:
		return &s.Leads
	case records.Contacts:
		return &s.Contacts
	case records.Accounts:
		return &s.Accounts
	case records.Opportunities:
		return &s.Opportunities
	case records.Tasks:
		return &s.Tasks
	}
	return nil
}

// Records returns the collection for ot. Unknown types yield nil.
func (s Snapshot) Records(ot records.ObjectType) []records.Record {
	p := s.list(ot)
	if p == nil {
		return nil
	}
	return *p
}

func (s *Snapshot) set(ot records.ObjectType, recs []records.Record) {
	if p := s.list(ot); p != nil {
		*p = recs
	}
}

// Map returns a copy of s with each collection replaced by fn's result.
func (s Snapshot) Map(fn func(ot records.ObjectType, recs []records.Record) []records.Record) Snapshot {
	out := Snapshot{LastSync: s.LastSync}
	for _, ot := range records.ObjectTypes {
		out.set(ot, fn(ot, s.Records(ot)))
	}
	out.normalize()
	return out
}

// All returns every record across collections in object-type order.
func (s Snapshot) All() []records.Record {
	out := make([]records.Record, 0, s.Total())
	for _, ot := range records.ObjectTypes {
		out = append(out, s.Records(ot)...)
	}
	return out
}

// Total counts the records across all collections.
func (s Snapshot) Total() int {
	n := 0
	for _, ot := range records.ObjectTypes {
		n += len(s.Records(ot))
	}
	return n
}

// Empty reports whether no collection holds a record.
func (s Snapshot) Empty() bool { return s.Total() == 0 }

func decodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	s.normalize()
	return s, nil
}

func encodeSnapshot(s Snapshot) ([]byte, error) {
	s.normalize()
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}
