// Package notify derives each user's "what changed for me" feed from
// the global notification list and a per-user watermark.
//
// Two independent axes govern the state: the reset epoch (a stale epoch
// means everything from the previous era counts as seen) and seen_ts
// (everything at or before it counts as read). There are no per-item
// read flags.
package notify

import (
	"time"

	"github.com/tegward/housepoints/internal/ledger"
	"github.com/tegward/housepoints/internal/model"
	"github.com/tegward/housepoints/internal/store"
)

const (
	// unreadWindow bounds how far back the unread count looks. A user
	// with more than this many unseen notifications gets a floor, not
	// an exact count; that keeps the indicator read cheap.
	unreadWindow = 200

	// DefaultFeedLimit is how many entries a feed view shows.
	DefaultFeedLimit = 10
)

// Feed computes per-user notification views. A nil seen store disables
// the feature: every method becomes a harmless no-op instead of an
// error, matching deployments where the notification record was never
// provisioned.
type Feed struct {
	ledger *ledger.Service
	seen   *store.SeenStore
	now    func() int64
}

func New(l *ledger.Service, seen *store.SeenStore) *Feed {
	return &Feed{
		ledger: l,
		seen:   seen,
		now:    func() int64 { return time.Now().Unix() },
	}
}

// Enabled reports whether the notification feature is available.
func (f *Feed) Enabled() bool {
	return f.seen != nil
}

// ensureSeenCurrent returns the user's seen state under the current
// epoch. A stale epoch resets the watermark to zero and persists the
// transition: notifications from a cleared era are meaningless, so they
// count as fully seen.
func (f *Feed) ensureSeenCurrent(userID int64) (*model.SeenState, error) {
	totals, err := f.ledger.Totals()
	if err != nil {
		return nil, err
	}

	st, err := f.seen.Get(userID)
	if err != nil {
		return nil, err
	}
	if st != nil && st.ResetVersion == totals.ResetVersion {
		return st, nil
	}

	st = &model.SeenState{ResetVersion: totals.ResetVersion, SeenTS: 0}
	if err := f.seen.Set(userID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// forUser collects the newest entries addressed to one user, newest
// first, up to limit.
func (f *Feed) forUser(userID int64, limit int) ([]model.NotifEntry, error) {
	totals, err := f.ledger.Totals()
	if err != nil {
		return nil, err
	}

	out := []model.NotifEntry{}
	for _, n := range totals.Notifs {
		if n.UserID != userID {
			continue
		}
		out = append(out, n)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Unread counts notifications newer than the user's watermark, over the
// bounded recent window.
func (f *Feed) Unread(userID int64) (int, error) {
	if !f.Enabled() {
		return 0, nil
	}

	st, err := f.ensureSeenCurrent(userID)
	if err != nil {
		return 0, err
	}

	items, err := f.forUser(userID, unreadWindow)
	if err != nil {
		return 0, err
	}

	unread := 0
	for _, n := range items {
		if n.TS > st.SeenTS {
			unread++
		}
	}
	return unread, nil
}

// Entry is one feed row. New marks entries the user had not seen when
// the view was built.
type Entry struct {
	model.NotifEntry
	New bool `json:"new"`
}

// View renders the user's feed page and advances the watermark to the
// newest entry shown. The New flags reflect the watermark before the
// advance, so a caller sees which rows were unread exactly once.
func (f *Feed) View(userID int64, limit int) ([]Entry, error) {
	if !f.Enabled() {
		return []Entry{}, nil
	}
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	st, err := f.ensureSeenCurrent(userID)
	if err != nil {
		return nil, err
	}

	items, err := f.forUser(userID, limit)
	if err != nil {
		return nil, err
	}

	newest := st.SeenTS
	out := make([]Entry, 0, len(items))
	for _, n := range items {
		out = append(out, Entry{NotifEntry: n, New: n.TS > st.SeenTS})
		if n.TS > newest {
			newest = n.TS
		}
	}
	if newest == 0 {
		newest = f.now()
	}

	if err := f.markSeen(userID, st, newest); err != nil {
		return nil, err
	}
	return out, nil
}

// markSeen advances the watermark. It never regresses: marking an older
// timestamp than the current watermark is a no-op.
func (f *Feed) markSeen(userID int64, st *model.SeenState, ts int64) error {
	if ts <= st.SeenTS {
		return nil
	}
	totals, err := f.ledger.Totals()
	if err != nil {
		return err
	}
	return f.seen.Set(userID, &model.SeenState{
		ResetVersion: totals.ResetVersion,
		SeenTS:       ts,
	})
}

// Clear dismisses the user's feed by stamping the watermark at the
// current time under the current epoch. Entries cannot be deleted per
// user from the shared list, so "cleared" means "everything up to now
// is seen". Also used for the acting admin right after a board reset;
// everyone else self-clears on their next epoch check.
func (f *Feed) Clear(userID int64) error {
	if !f.Enabled() {
		return nil
	}
	totals, err := f.ledger.Totals()
	if err != nil {
		return err
	}
	return f.seen.Set(userID, &model.SeenState{ResetVersion: totals.ResetVersion, SeenTS: f.now()})
}
