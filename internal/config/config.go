// Package config turns the loosely-typed admin settings document exported
// from the forum's plugin UI into a strict Config value. The Config is
// built once at startup and handed to each component; nothing reads
// settings ambiently.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tegward/housepoints/internal/model"
)

type Config struct {
	PointTypes    []model.PointType
	Teams         []model.Team
	DefaultPoints int

	ShowOnProfile bool
	ShowOnMini    bool
	ShowTeamName  bool

	EditorGroupIDs    []int64
	LogLinkText       string
	ScoreboardBoardID int64

	Images map[string]string
}

// Load reads and parses an admin settings JSON document.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read settings: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse settings: %w", err)
	}

	return Parse(raw), nil
}

// Parse builds a Config from the raw settings map. Every field has a
// documented default, so a partial or empty document still yields a
// working configuration.
func Parse(raw map[string]any) Config {
	if raw == nil {
		raw = map[string]any{}
	}

	images := parseImages(raw["images"])

	cfg := Config{
		PointTypes:        parsePointTypes(raw["point_types"]),
		Teams:             parseTeams(raw["houseteam_list"], images),
		DefaultPoints:     normalizeInt(first(raw, "default_points", "default_starting_points"), 0),
		ShowOnProfile:     ParseBool(first(raw, "show_on_profile", "show_points_on_profiles"), true),
		ShowOnMini:        ParseBool(first(raw, "show_on_miniprofile", "show_points_on_miniprofiles"), true),
		ShowTeamName:      ParseBool(first(raw, "show_team_name_under_image", "show_team_name"), false),
		EditorGroupIDs:    NormalizeGroupIDs(raw["editor_group_ids"]),
		ScoreboardBoardID: NormalizeID(first(raw, "scoreboard_board_id", "scoreboard_board")),
		Images:            images,
	}

	cfg.LogLinkText = normalizeString(first(raw, "points_log_link_text", "points_log_label"))
	if cfg.LogLinkText == "" {
		cfg.LogLinkText = "Points Log"
	}

	return cfg
}

func first(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func parseImages(v any) map[string]string {
	out := map[string]string{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for name, raw := range m {
		if u, ok := raw.(string); ok && u != "" {
			out[name] = u
		}
	}
	return out
}

// parsePointTypes reads the point type rows, falling back to the stock
// HP/HWP pair when the admin has not configured any.
func parsePointTypes(v any) []model.PointType {
	rows, ok := v.([]any)
	if !ok || len(rows) == 0 {
		return []model.PointType{
			{TypeID: "hp", Name: "House Points", Abbr: "HP", AllowNegative: true, IncludeInTotal: true, ShowOnLog: true, Enabled: true},
			{TypeID: "hwp", Name: "Homework Points", Abbr: "HWP", AllowNegative: false, IncludeInTotal: true, ShowOnLog: true, Enabled: true},
		}
	}

	var out []model.PointType
	for _, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		typeID := normalizeString(row["type_id"])
		if typeID == "" {
			continue
		}

		pt := model.PointType{
			TypeID:         typeID,
			Name:           normalizeString(row["name"]),
			Abbr:           normalizeString(row["abbr"]),
			AllowNegative:  ParseBool(row["allow_negative"], false),
			IncludeInTotal: ParseBool(first(row, "include_in_scoreboard_total", "include_in_total"), true),
			// The legacy plugin export reuses "points_log_type_id" as the
			// per-row yes/no for log visibility.
			ShowOnLog: ParseBool(first(row, "show_on_log", "points_log_type_id"), false),
			Enabled:   true,
		}
		if pt.Name == "" {
			pt.Name = typeID
		}
		if pt.Abbr == "" {
			pt.Abbr = strings.ToUpper(typeID)
		}
		out = append(out, pt)
	}
	return out
}

func parseTeams(v any, images map[string]string) []model.Team {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}

	var out []model.Team
	for _, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		gid := NormalizeID(first(row, "group", "group_id"))
		if gid == 0 {
			continue
		}

		label := normalizeString(first(row, "display_name", "label"))

		image := NormalizeImageURL(first(row, "scoreboard_image", "team_image", "image"), images)
		if image == "" {
			if u := normalizeString(first(row, "url_image", "url")); LooksLikeURL(u) {
				image = u
			}
		}
		if image == "" && label != "" {
			key := strings.ToLower(strings.ReplaceAll(label, " ", ""))
			image = images[key]
		}

		out = append(out, model.Team{GroupID: gid, Label: label, Image: image})
	}
	return out
}

// EnabledTypes returns the point types in configured order, skipping
// disabled ones.
func (c Config) EnabledTypes() []model.PointType {
	var out []model.PointType
	for _, t := range c.PointTypes {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// TypeByID finds an enabled point type.
func (c Config) TypeByID(typeID string) (model.PointType, bool) {
	for _, t := range c.PointTypes {
		if t.Enabled && t.TypeID == typeID {
			return t, true
		}
	}
	return model.PointType{}, false
}

// LogVisibleTypeIDs returns the set of type ids currently allowed on the
// public points log.
func (c Config) LogVisibleTypeIDs() map[string]bool {
	out := map[string]bool{}
	for _, t := range c.PointTypes {
		if t.Enabled && t.ShowOnLog {
			out[t.TypeID] = true
		}
	}
	return out
}

// TeamByGroup finds the team configured for a group id.
func (c Config) TeamByGroup(groupID int64) (model.Team, bool) {
	for _, t := range c.Teams {
		if t.GroupID == groupID {
			return t, true
		}
	}
	return model.Team{}, false
}

// IsEditorGroup reports whether a group is on the editor allowlist.
func (c Config) IsEditorGroup(groupID int64) bool {
	for _, id := range c.EditorGroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}
