package store

import (
	"database/sql"

	"github.com/tegward/housepoints/internal/model"
)

// SeenStore persists the per-user notification watermark. It reuses the
// record name of the legacy per-user notification key; old merge-list
// values simply fail the epoch check and are overwritten on first read.
type SeenStore struct {
	db *sql.DB
}

func NewSeenStore(db *sql.DB) *SeenStore {
	return &SeenStore{db: db}
}

// Get returns a user's seen state, or nil when none has been written.
func (s *SeenStore) Get(userID int64) (*model.SeenState, error) {
	var st model.SeenState
	found, err := getRecord(s.db, RecordNotifications, userID, &st)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &st, nil
}

func (s *SeenStore) Set(userID int64, st *model.SeenState) error {
	return setRecord(s.db, RecordNotifications, userID, st)
}
