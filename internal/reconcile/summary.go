package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// Summary is the outcome of reconciling one file.
type Summary struct {
	FileName         string        `json:"file_name"`
	ContentHash      string        `json:"content_hash"`
	Skipped          bool          `json:"skipped"`
	Total            int           `json:"total"`
	Inserted         int           `json:"inserted"`
	Updated          int           `json:"updated"`
	DuplicatesLogged int           `json:"duplicates_logged"`
	Errors           int           `json:"errors"`
	Rejected         int           `json:"rejected"`
	Duration         time.Duration `json:"duration"`
}

// FullyReconciled reports whether every row was reconciled without error.
func (s Summary) FullyReconciled() bool {
	return !s.Skipped && s.Errors == 0
}

// Add accumulates counts of another file into s.
func (s *Summary) Add(o Summary) {
	s.Total += o.Total
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.DuplicatesLogged += o.DuplicatesLogged
	s.Errors += o.Errors
	s.Rejected += o.Rejected
	s.Duration += o.Duration
}

// String renders the human-readable summary written to the event log.
func (s Summary) String() string {
	if s.Skipped {
		return "File already reconciled, skipped."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d records. Inserted %d records. Updated %d records. %d duplicates logged.",
		s.Total, s.Inserted, s.Updated, s.DuplicatesLogged)
	if s.Rejected > 0 {
		fmt.Fprintf(&b, " %d rows rejected.", s.Rejected)
	}
	if s.Errors > 0 {
		fmt.Fprintf(&b, " %d errors.", s.Errors)
	}
	return b.String()
}
