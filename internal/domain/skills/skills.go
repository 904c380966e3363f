// Package skills contains the entry names and record types shared across the application.
package skills

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Overall is the aggregate entry that precedes the individual skills in the feed.
const Overall = "overall"

// names is the fixed feed order. Row i of the upstream feed belongs to names[i].
var names = []string{
	Overall,
	"attack",
	"defence",
	"strength",
	"hitpoints",
	"ranged",
	"prayer",
	"magic",
	"cooking",
	"woodcutting",
	"fletching",
	"fishing",
	"firemaking",
	"crafting",
	"smithing",
	"mining",
	"herblore",
	"agility",
	"thieving",
	"slayer",
	"farming",
	"runecraft",
	"hunter",
	"construction",
}

// Names returns a copy of the fixed, ordered entry name list.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Record is the rank/level/experience triple for one entry.
// Rank is -1 when the player is unranked in that entry.
type Record struct {
	Rank       int   `json:"rank"`
	Level      int   `json:"level"`
	Experience int64 `json:"experience"`
}

// Unranked is the record used for entries the feed does not report.
func Unranked() Record {
	return Record{Rank: -1, Level: 1, Experience: 0}
}

// Snapshot maps every entry name of a name set to its record.
// A Snapshot is never modified after construction.
type Snapshot struct {
	names   []string
	records map[string]Record
}

// NewSnapshot builds a snapshot over names. Entries missing from records
// are filled with Unranked so the snapshot always covers the whole set.
func NewSnapshot(names []string, records map[string]Record) Snapshot {
	s := Snapshot{
		names:   make([]string, len(names)),
		records: make(map[string]Record, len(names)),
	}
	copy(s.names, names)
	for _, n := range names {
		r, ok := records[n]
		if !ok {
			r = Unranked()
		}
		s.records[n] = r
	}
	return s
}

// Record returns the record for name.
func (s Snapshot) Record(name string) (Record, bool) {
	r, ok := s.records[name]
	return r, ok
}

// Names returns the ordered names covered by the snapshot.
func (s Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of entries.
func (s Snapshot) Len() int { return len(s.names) }

// Each calls fn for every entry in name order.
func (s Snapshot) Each(fn func(name string, r Record)) {
	for _, n := range s.names {
		fn(n, s.records[n])
	}
}

// Equal reports whether both snapshots hold the same names in the same order with equal records.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.names) != len(o.names) {
		return false
	}
	for i, n := range s.names {
		if o.names[i] != n || s.records[n] != o.records[n] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the snapshot as an object keyed by entry name, in name order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("encode name %q: %w", n, err)
		}
		val, err := json.Marshal(s.records[n])
		if err != nil {
			return nil, fmt.Errorf("encode record %q: %w", n, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by entry name. Known names keep the
// fixed order; unknown names are appended in sorted order.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ordered := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, n := range names {
		if _, ok := raw[n]; ok {
			ordered = append(ordered, n)
			seen[n] = true
		}
	}
	extra := make([]string, 0)
	for n := range raw {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	ordered = append(ordered, extra...)
	*s = NewSnapshot(ordered, raw)
	return nil
}
