// Package names resolves current display names by scraping forum
// profile pages. The points log stores the name captured at award time;
// this lets readers show the name a user carries now. Everything here
// is best-effort: any failure falls back to the caller-supplied name
// and never blocks core functionality.
package names

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

const maxNameLen = 90

var (
	titleRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	headingRe = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	tagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	profileRe = regexp.MustCompile(`(?i)^view\s+profile\s*-\s*`)
	parenRe   = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// Resolver fetches and caches display names. A Resolver with an empty
// base URL is disabled and always returns the fallback.
type Resolver struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	cache map[int64]string
}

func NewResolver(forumBaseURL string) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(forumBaseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		cache:   map[int64]string{},
	}
}

// Resolve returns the user's current display name, or fallback when the
// profile page cannot be fetched or parsed. Successful lookups are
// cached for the life of the process.
func (r *Resolver) Resolve(userID int64, fallback string) string {
	fallback = strings.TrimSpace(fallback)
	if r.baseURL == "" || userID == 0 {
		return fallback
	}

	r.mu.RLock()
	cached, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	name := r.fetch(userID)
	if name == "" {
		name = fallback
	}
	if name == "" {
		return ""
	}

	r.mu.Lock()
	r.cache[userID] = name
	r.mu.Unlock()
	return name
}

func (r *Resolver) fetch(userID int64) string {
	resp, err := r.client.Get(fmt.Sprintf("%s/user/%d", r.baseURL, userID))
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ""
	}
	return extractName(string(body))
}

// extractName pulls a display name out of profile-page HTML: the first
// usable <h1>, then the page title ("View Profile - Name (user)").
func extractName(html string) string {
	if m := headingRe.FindStringSubmatch(html); m != nil {
		if name := cleanName(m[1]); name != "" {
			return name
		}
	}
	if m := titleRe.FindStringSubmatch(html); m != nil {
		// Titles look like "View Profile - Severus Snape (severus)";
		// anything without the profile prefix is some other page.
		raw := strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))
		if profileRe.MatchString(raw) {
			return cleanName(raw)
		}
	}
	return ""
}

func cleanName(raw string) string {
	name := tagRe.ReplaceAllString(raw, "")
	name = strings.TrimSpace(name)
	name = profileRe.ReplaceAllString(name, "")
	name = parenRe.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return ""
	}
	return name
}
