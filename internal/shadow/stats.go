package shadow

import "sync/atomic"

// Stats keeps running totals of shadow comparisons.
type Stats struct {
	evaluated  atomic.Int64
	failed     atomic.Int64
	agreed     atomic.Int64
	conflicts  atomic.Int64
	uncompared atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats. AgreementRate is the
// share of compared transactions on which both models agreed; it is 1 when
// nothing has been compared yet.
type StatsSnapshot struct {
	Evaluated     int64   `json:"evaluated"`
	Failed        int64   `json:"failed"`
	Compared      int64   `json:"compared"`
	Conflicts     int64   `json:"conflicts"`
	Uncompared    int64   `json:"uncompared"`
	AgreementRate float64 `json:"agreement_rate"`
}

func (s *Stats) record(c Comparison) {
	if s == nil {
		return
	}
	s.evaluated.Add(1)
	switch c {
	case ComparisonAgree:
		s.agreed.Add(1)
	case ComparisonConflict:
		s.conflicts.Add(1)
	default:
		s.uncompared.Add(1)
	}
}

func (s *Stats) recordFailure() {
	if s == nil {
		return
	}
	s.failed.Add(1)
}

func (s *Stats) Snapshot() StatsSnapshot {
	agreed, conflicts := s.agreed.Load(), s.conflicts.Load()
	snap := StatsSnapshot{
		Evaluated:     s.evaluated.Load(),
		Failed:        s.failed.Load(),
		Compared:      agreed + conflicts,
		Conflicts:     conflicts,
		Uncompared:    s.uncompared.Load(),
		AgreementRate: 1,
	}
	if snap.Compared > 0 {
		snap.AgreementRate = float64(agreed) / float64(snap.Compared)
	}
	return snap
}
