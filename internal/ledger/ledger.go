// Package ledger owns the authoritative point balances: per-user values,
// per-group aggregates, the global points log, and the reset epoch.
//
// A reset never rewrites user records. It bumps reset_version on the
// totals record, and readers treat any user record stamped with an older
// version as all-zero. That keeps reset O(1) no matter how many users
// have been touched.
package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tegward/housepoints/internal/config"
	"github.com/tegward/housepoints/internal/model"
	"github.com/tegward/housepoints/internal/store"
)

const (
	logCap   = 250
	notifCap = 500
)

type Service struct {
	cfg    config.Config
	totals *store.TotalsStore
	users  *store.UserPointsStore
	now    func() int64
}

func New(cfg config.Config, totals *store.TotalsStore, users *store.UserPointsStore) *Service {
	return &Service{
		cfg:    cfg,
		totals: totals,
		users:  users,
		now:    func() int64 { return time.Now().Unix() },
	}
}

// Totals returns the forum-scoped totals record. A never-written record
// yields a zeroed by_group built from the configured teams and types.
func (s *Service) Totals() (*model.Totals, error) {
	t, err := s.totals.Get()
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	t = &model.Totals{
		ByGroup: s.zeroedByGroup(),
		Log:     []model.LogEntry{},
		Notifs:  []model.NotifEntry{},
	}
	return t, nil
}

func (s *Service) zeroedByGroup() map[string]map[string]int {
	byGroup := map[string]map[string]int{}
	for _, team := range s.cfg.Teams {
		gk := strconv.FormatInt(team.GroupID, 10)
		byGroup[gk] = map[string]int{}
		for _, pt := range s.cfg.EnabledTypes() {
			byGroup[gk][pt.TypeID] = 0
		}
	}
	return byGroup
}

// DisplayPoints is what a profile or mini-profile shows for one user.
type DisplayPoints struct {
	Points map[string]int    `json:"points"`
	Total  int               `json:"total"`
	Types  []model.PointType `json:"types"`
}

// pointValue resolves one stored value under the epoch rule: stale
// records read as zero, untouched types read as the configured default.
func (s *Service) pointValue(user *model.UserPoints, stale bool, typeID string) int {
	if stale {
		return 0
	}
	if v, ok := user.Points[typeID]; ok {
		return v
	}
	return s.cfg.DefaultPoints
}

func emptyUser() *model.UserPoints {
	return &model.UserPoints{Points: map[string]int{}}
}

// GetDisplayPoints builds the displayed values for a user. The per-user
// total sums every enabled type; include_in_total only gates the
// scoreboard aggregate, not this sum.
func (s *Service) GetDisplayPoints(userID int64) (*DisplayPoints, error) {
	totals, err := s.Totals()
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = emptyUser()
	}

	stale := user.ResetVersion != totals.ResetVersion
	types := s.cfg.EnabledTypes()

	out := &DisplayPoints{Points: map[string]int{}, Types: types}
	for _, pt := range types {
		v := s.pointValue(user, stale, pt.TypeID)
		out.Points[pt.TypeID] = v
		out.Total += v
	}
	return out, nil
}

// AdjustRequest carries one staff adjustment. The caller is responsible
// for request policy: a non-empty reason and, for types that disallow
// negative values, coercing a negative delta to zero before calling.
type AdjustRequest struct {
	UserID int64
	TypeID string
	Delta  int
	Reason string

	// GroupID is the profile-context group, 0 when unknown. When 0, the
	// user's stored group is used instead.
	GroupID int64

	StaffID   int64
	StaffName string

	// UserName is a best-effort display name for the log entry. Blank
	// falls back to "User #<id>"; log readers re-resolve names live.
	UserName string
}

// AdjustResult reports what an adjustment actually changed.
type AdjustResult struct {
	OldValue int
	NewValue int
	GroupID  int64

	// Notif is the notification entry emitted, nil when the adjustment
	// was a net no-op.
	Notif *model.NotifEntry

	// Logged reports whether a global log entry was stored.
	Logged bool
}

// Adjust applies one staff adjustment: recompute the user's balances
// under the current epoch, clamp the result at zero, fold the change
// into the group aggregate, and emit log/notification entries. The user
// record is written first; the totals record is written second as one
// atomic value. If the totals write fails after the user write
// succeeded, the balance is durable but the log/notification entry for
// this change is lost. The balance is the source of truth and the log
// is advisory.
func (s *Service) Adjust(req AdjustRequest) (*AdjustResult, error) {
	pt, ok := s.cfg.TypeByID(req.TypeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPointType, req.TypeID)
	}

	totals, err := s.Totals()
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = emptyUser()
	}

	groupID := req.GroupID
	if groupID == 0 {
		groupID = user.GroupID
	}
	if groupID == 0 {
		return nil, ErrMissingGroup
	}

	stale := user.ResetVersion != totals.ResetVersion

	oldVal := s.pointValue(user, stale, req.TypeID)
	newVal := oldVal + req.Delta
	if newVal < 0 {
		// Balances never go negative, even for types that accept
		// negative deltas.
		newVal = 0
	}

	// Write every enabled type explicitly so the stored record is
	// complete under the current epoch.
	newPoints := map[string]int{}
	for _, t := range s.cfg.EnabledTypes() {
		newPoints[t.TypeID] = s.pointValue(user, stale, t.TypeID)
	}
	newPoints[req.TypeID] = newVal

	groupDelta := newVal - oldVal
	gk := strconv.FormatInt(groupID, 10)
	if totals.ByGroup[gk] == nil {
		totals.ByGroup[gk] = map[string]int{}
	}
	totals.ByGroup[gk][req.TypeID] += groupDelta

	err = s.users.Set(req.UserID, &model.UserPoints{
		ResetVersion: totals.ResetVersion,
		GroupID:      groupID,
		Points:       newPoints,
		Updated:      s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("write user record: %w", err)
	}

	result := &AdjustResult{OldValue: oldVal, NewValue: newVal, GroupID: groupID}

	userName := req.UserName
	if userName == "" {
		userName = fmt.Sprintf("User #%d", req.UserID)
	}

	// Only positive awards go on the public log, and only for types
	// whose log visibility is on right now. The read path re-checks
	// visibility against the then-current configuration.
	if req.Delta > 0 && pt.ShowOnLog {
		totals.Log = append([]model.LogEntry{{
			TS:        s.now(),
			Delta:     req.Delta,
			TypeID:    pt.TypeID,
			Abbr:      pt.Abbr,
			Reason:    req.Reason,
			StaffID:   req.StaffID,
			StaffName: req.StaffName,
			UserID:    req.UserID,
			UserName:  userName,
		}}, totals.Log...)
		if len(totals.Log) > logCap {
			totals.Log = totals.Log[:logCap]
		}
		result.Logged = true
	}

	// Notifications cover awards and deductions alike, but only when
	// the write changed something.
	if groupDelta != 0 {
		notif := model.NotifEntry{
			TS:        s.now(),
			Delta:     req.Delta,
			TypeID:    pt.TypeID,
			Abbr:      pt.Abbr,
			Reason:    req.Reason,
			StaffID:   req.StaffID,
			StaffName: req.StaffName,
			UserID:    req.UserID,
		}
		totals.Notifs = append([]model.NotifEntry{notif}, totals.Notifs...)
		if len(totals.Notifs) > notifCap {
			totals.Notifs = totals.Notifs[:notifCap]
		}
		result.Notif = &notif
	}

	if err := s.totals.Set(totals); err != nil {
		return nil, fmt.Errorf("write totals record: %w", err)
	}

	return result, nil
}

// Reset starts a new epoch: bump reset_version, zero the group
// aggregates for every configured team and enabled type, and clear the
// log and notification feeds. User records are untouched; they read as
// zero from now on because their stored epoch no longer matches.
func (s *Service) Reset() (*model.Totals, error) {
	totals, err := s.Totals()
	if err != nil {
		return nil, err
	}

	next := &model.Totals{
		ResetVersion: totals.ResetVersion + 1,
		ResetTS:      s.now(),
		ByGroup:      s.zeroedByGroup(),
		Log:          []model.LogEntry{},
		Notifs:       []model.NotifEntry{},
	}
	if err := s.totals.Set(next); err != nil {
		return nil, fmt.Errorf("write totals record: %w", err)
	}
	return next, nil
}
