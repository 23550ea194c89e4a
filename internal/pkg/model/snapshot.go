package model

import "time"

// Snapshot is the materialised view produced by one successful poll cycle.
type Snapshot struct {
	// Records are newest first.
	Records    []ReconciledRecord `json:"records"`
	Latest     Reading            `json:"latest"`
	CapturedAt time.Time          `json:"captured_at"`
}

// Head returns the newest record of the snapshot.
func (s *Snapshot) Head() (ReconciledRecord, bool) {
	if s == nil || len(s.Records) == 0 {
		return ReconciledRecord{}, false
	}
	return s.Records[0], true
}
