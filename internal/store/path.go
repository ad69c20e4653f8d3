package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one parsed component of a PYGRDATAPATH-style path string.
type Entry struct {
	Raw          string // the original path component, unparsed
	Scheme       string // "kv", "mysql", "postgres", "ws"
	Target       string // scheme-specific target: filesystem path, "db.tbl", or URL
	DefaultLayer string // layer name this entry auto-registers as, if free
}

// ParsePath splits a PYGRDATAPATH-style string on sep (default ",") and
// classifies each component by scheme:
//
//	ws://... / wss://...  -> Remote RPC Store,   layer "remote"
//	mysql:db.tbl          -> SQL Store (MySQL),  layer "MySQL"
//	postgres:db.tbl       -> SQL Store (Postgres),layer "Postgres"
//	absolute filesystem path -> Local KV Store,  layer "system"
//	path under $HOME          -> Local KV Store, layer "my"
//	path starting with "."    -> Local KV Store, layer "here"
func ParsePath(raw, sep string) ([]Entry, error) {
	if sep == "" {
		sep = ","
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("store: empty path")
	}

	parts := strings.Split(raw, sep)
	entries := make([]Entry, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		e, err := classify(ExpandHome(p))
		if err != nil {
			return nil, err
		}
		e.Raw = p
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("store: empty path")
	}
	return entries, nil
}

func classify(p string) (Entry, error) {
	switch {
	case strings.HasPrefix(p, "ws://"), strings.HasPrefix(p, "wss://"):
		return Entry{Raw: p, Scheme: "ws", Target: p, DefaultLayer: "remote"}, nil

	case strings.HasPrefix(p, "mysql:"):
		return Entry{Raw: p, Scheme: "mysql", Target: strings.TrimPrefix(p, "mysql:"), DefaultLayer: "MySQL"}, nil

	case strings.HasPrefix(p, "postgres:"):
		return Entry{Raw: p, Scheme: "postgres", Target: strings.TrimPrefix(p, "postgres:"), DefaultLayer: "Postgres"}, nil

	case strings.HasPrefix(p, "."):
		return Entry{Raw: p, Scheme: "kv", Target: p, DefaultLayer: "here"}, nil

	case filepath.IsAbs(p):
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			if rel, err := filepath.Rel(home, p); err == nil && !strings.HasPrefix(rel, "..") {
				return Entry{Raw: p, Scheme: "kv", Target: p, DefaultLayer: "my"}, nil
			}
		}
		return Entry{Raw: p, Scheme: "kv", Target: p, DefaultLayer: "system"}, nil

	default:
		return Entry{}, fmt.Errorf("store: cannot classify path entry %q", p)
	}
}

// DefaultPathSource is PYGRDATAPATH's default value when the environment
// variable is unset: home, then current working directory.
const DefaultPathSource = "~,."

// ExpandHome expands a leading "~" in p to the user's home directory.
func ExpandHome(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
