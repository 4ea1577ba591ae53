package model

// PointType is one scoring dimension (e.g. house points, homework points).
// Defined by admin configuration and immutable for the life of the process.
type PointType struct {
	TypeID         string `json:"type_id"`
	Name           string `json:"name"`
	Abbr           string `json:"abbr"`
	AllowNegative  bool   `json:"allow_negative"`
	IncludeInTotal bool   `json:"include_in_total"`
	ShowOnLog      bool   `json:"show_on_log"`
	Enabled        bool   `json:"enabled"`
}

// Team maps a forum user group to a competing house.
type Team struct {
	GroupID int64  `json:"group_id"`
	Label   string `json:"label"`
	Image   string `json:"image"`
}

// LogEntry is one row of the global points log. Entries are written once
// and never edited; old entries fall off the capped list.
type LogEntry struct {
	TS        int64  `json:"ts"`
	Delta     int    `json:"delta"`
	TypeID    string `json:"type_id"`
	Abbr      string `json:"abbr"`
	Reason    string `json:"reason"`
	StaffID   int64  `json:"staff_id"`
	StaffName string `json:"staff_name"`
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
}

// NotifEntry is one point-change notification. Stored globally on the
// totals record and filtered per recipient at read time.
type NotifEntry struct {
	TS        int64  `json:"ts"`
	Delta     int    `json:"delta"`
	TypeID    string `json:"type_id"`
	Abbr      string `json:"abbr"`
	Reason    string `json:"reason"`
	StaffID   int64  `json:"staff_id"`
	StaffName string `json:"staff_name"`
	UserID    int64  `json:"user_id"`
}

// Totals is the single forum-scoped record: per-group aggregates, the
// global log, the global notification feed, and the reset epoch.
// ByGroup is keyed by group id (as a string) then point type id.
type Totals struct {
	ResetVersion int                       `json:"reset_version"`
	ResetTS      int64                     `json:"reset_ts"`
	ByGroup      map[string]map[string]int `json:"by_group"`
	Log          []LogEntry                `json:"log"`
	Notifs       []NotifEntry              `json:"notifs"`
}

// UserPoints is the per-user balance record. A GroupID of 0 means the
// user's team is unknown. Values stored under an older ResetVersion are
// retained but must never be displayed or adjusted from.
type UserPoints struct {
	ResetVersion int            `json:"reset_version"`
	GroupID      int64          `json:"group_id"`
	Points       map[string]int `json:"points"`
	Updated      int64          `json:"updated"`
}

// SeenState is the per-user notification watermark. Any notification
// newer than SeenTS is unread; a stale ResetVersion means SeenTS is
// treated as zero.
type SeenState struct {
	ResetVersion int   `json:"reset_version"`
	SeenTS       int64 `json:"seen_ts"`
}
