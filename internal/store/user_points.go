package store

import (
	"database/sql"

	"github.com/tegward/housepoints/internal/model"
)

type UserPointsStore struct {
	db *sql.DB
}

func NewUserPointsStore(db *sql.DB) *UserPointsStore {
	return &UserPointsStore{db: db}
}

// Get returns a user's balance record, or nil when the user has never
// been touched.
func (s *UserPointsStore) Get(userID int64) (*model.UserPoints, error) {
	var u model.UserPoints
	found, err := getRecord(s.db, RecordUser, userID, &u)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if u.Points == nil {
		u.Points = map[string]int{}
	}
	return &u, nil
}

func (s *UserPointsStore) Set(userID int64, u *model.UserPoints) error {
	if u.Points == nil {
		u.Points = map[string]int{}
	}
	return setRecord(s.db, RecordUser, userID, u)
}
