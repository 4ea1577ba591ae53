package names

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestExtractName(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{
			name: "heading",
			html: `<html><body><div class="show-user"><h1>Severus Snape</h1></div></body></html>`,
			want: "Severus Snape",
		},
		{
			name: "heading with markup",
			html: `<h1><span class="online">Minerva McGonagall</span></h1>`,
			want: "Minerva McGonagall",
		},
		{
			name: "title fallback",
			html: `<html><head><title>View Profile - Severus Snape (severus)</title></head><body></body></html>`,
			want: "Severus Snape",
		},
		{
			name: "non-profile title ignored",
			html: `<html><head><title>Board Index</title></head></html>`,
			want: "",
		},
		{
			name: "empty page",
			html: ``,
			want: "",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := extractName(c.html); got != c.want {
				t.Errorf("extractName = %q, want %q", got, c.want)
			}
		})
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/user/5" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><head><title>View Profile - Harry Potter (harry)</title></head></html>`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL)

	got := r.Resolve(5, "stored name")
	if got != "Harry Potter" {
		t.Fatalf("Resolve = %q, want %q", got, "Harry Potter")
	}

	// Second lookup hits the cache.
	r.Resolve(5, "stored name")
	if hits.Load() != 1 {
		t.Errorf("fetches = %d, want 1", hits.Load())
	}
}

func TestResolveFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL)
	if got := r.Resolve(5, "  stored name "); got != "stored name" {
		t.Errorf("Resolve = %q, want fallback", got)
	}

	// Disabled resolver never fetches.
	disabled := NewResolver("")
	if got := disabled.Resolve(5, "fallback"); got != "fallback" {
		t.Errorf("Resolve = %q, want fallback", got)
	}
}
