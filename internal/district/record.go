package district

import (
	"sort"

	"go.uber.org/zap"
)

// PriorityLevel is the externally supplied intervention priority label.
type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "Low"
	PriorityMedium PriorityLevel = "Medium"
	PriorityHigh   PriorityLevel = "High"
)

// Valid reports whether the level is one of Low, Medium, High.
func (p PriorityLevel) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Record carries one district's indicators. PriorityScore and PriorityLevel
// come from upstream and are never recomputed here. Cluster is nil until the
// clusterer has run.
type Record struct {
	Key           NormalizedKey `json:"nameKey"`
	Name          string        `json:"name,omitempty"`
	Population    int64         `json:"population"`
	PM25          float64       `json:"pm25"`
	AvgTemp       float64       `json:"avgTemp"`
	GreenCoverPct float64       `json:"greenCoverPct"`
	OpenLandPct   float64       `json:"openLandPct"`
	PriorityScore float64       `json:"priorityScore"`
	PriorityLevel PriorityLevel `json:"priorityLevel"`
	Cluster       *int          `json:"cluster,omitempty"`
}

// ClusterAssignment maps each clustered district to its cluster id.
type ClusterAssignment map[NormalizedKey]int

// Table is one input batch of district records, indexed by key and iterated
// in key order.
type Table struct {
	records []*Record
	index   map[NormalizedKey]*Record
	// arrival is the input position at which each key first appeared.
	arrival map[NormalizedKey]int
}

// NewTable builds a Table. Records with an empty key are dropped; when two
// records share a key the later one wins, matching a keyed overwrite.
func NewTable(records []Record) *Table {
	t := &Table{
		index:   make(map[NormalizedKey]*Record, len(records)),
		arrival: make(map[NormalizedKey]int, len(records)),
	}
	for i := range records {
		r := records[i]
		if r.Key.IsZero() {
			zap.L().Debug("district: dropping record with empty key", zap.String("name", r.Name))
			continue
		}
		if _, dup := t.index[r.Key]; dup {
			zap.L().Debug("district: duplicate key, keeping later record", zap.String("key", r.Key.String()))
		} else {
			t.arrival[r.Key] = len(t.arrival)
		}
		t.index[r.Key] = &r
	}

	t.records = make([]*Record, 0, len(t.index))
	for _, r := range t.index {
		t.records = append(t.records, r)
	}
	sort.Slice(t.records, func(i, j int) bool { return t.records[i].Key < t.records[j].Key })
	return t
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// Records returns the records in key order. The pointers are shared with the
// table.
func (t *Table) Records() []*Record { return t.records }

// Lookup returns the record for key.
func (t *Table) Lookup(key NormalizedKey) (*Record, bool) {
	r, ok := t.index[key]
	return r, ok
}

// ApplyClusters writes cluster ids into the matching records. Keys with no
// record are ignored.
func (t *Table) ApplyClusters(a ClusterAssignment) {
	for key, id := range a {
		r, ok := t.index[key]
		if !ok {
			continue
		}
		c := id
		r.Cluster = &c
	}
}

// TopByPriority returns up to n records with the highest priority score.
// Equal scores keep input order, so the earliest row wins a tie.
func (t *Table) TopByPriority(n int) []*Record {
	if n <= 0 || len(t.records) == 0 {
		return nil
	}
	sorted := make([]*Record, len(t.records))
	copy(sorted, t.records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].PriorityScore != sorted[j].PriorityScore {
			return sorted[i].PriorityScore > sorted[j].PriorityScore
		}
		return t.arrival[sorted[i].Key] < t.arrival[sorted[j].Key]
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// HighestPriority returns the record with the highest priority score.
func (t *Table) HighestPriority() (*Record, bool) {
	top := t.TopByPriority(1)
	if len(top) == 0 {
		return nil, false
	}
	return top[0], true
}
