package ledger

import "github.com/tegward/housepoints/internal/model"

// VisibleLog returns the log entries the public points log shows:
// positive awards whose type is log-visible under the *current*
// configuration. Storage is gated by the visibility snapshot at write
// time, so toggling a type off hides its history without erasing it,
// and toggling it back on restores it.
func (s *Service) VisibleLog() ([]model.LogEntry, error) {
	totals, err := s.Totals()
	if err != nil {
		return nil, err
	}

	visible := s.cfg.LogVisibleTypeIDs()

	out := []model.LogEntry{}
	for _, entry := range totals.Log {
		if entry.Delta <= 0 {
			continue
		}
		if !visible[entry.TypeID] {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
