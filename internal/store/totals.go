package store

import (
	"database/sql"

	"github.com/tegward/housepoints/internal/model"
)

type TotalsStore struct {
	db *sql.DB
}

func NewTotalsStore(db *sql.DB) *TotalsStore {
	return &TotalsStore{db: db}
}

// Get returns the forum-scoped totals record, or nil when it has never
// been written. Nil maps and lists inside a stored record are
// normalized so callers can index without checking.
func (s *TotalsStore) Get() (*model.Totals, error) {
	var t model.Totals
	found, err := getRecord(s.db, RecordTotals, 0, &t)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	if t.ByGroup == nil {
		t.ByGroup = map[string]map[string]int{}
	}
	if t.Log == nil {
		t.Log = []model.LogEntry{}
	}
	if t.Notifs == nil {
		t.Notifs = []model.NotifEntry{}
	}
	return &t, nil
}

// Set writes the totals record as one atomic value: by_group, log and
// notifs always travel together.
func (s *TotalsStore) Set(t *model.Totals) error {
	if t.ByGroup == nil {
		t.ByGroup = map[string]map[string]int{}
	}
	if t.Log == nil {
		t.Log = []model.LogEntry{}
	}
	if t.Notifs == nil {
		t.Notifs = []model.NotifEntry{}
	}
	return setRecord(s.db, RecordTotals, 0, t)
}
