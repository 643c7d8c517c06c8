package browserurl

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/mozlz4"
)

// sessionStore mirrors the subset of the Gecko session-recovery JSON we read.
type sessionStore struct {
	Windows []sessionWindow `json:"windows"`
}

type sessionWindow struct {
	Tabs []sessionTab `json:"tabs"`
}

type sessionTab struct {
	Entries []sessionEntry `json:"entries"`
}

type sessionEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SessionFileResolver recovers the active tab URL of a Gecko browser from
// its crash-recovery snapshot. It is the fallback when the accessibility
// read yields nothing.
type SessionFileResolver struct {
	// Roots are absolute profile-root directories to scan. Defaults to the
	// known browsers' profile dirs under the user's application support.
	Roots  []string
	logger *logging.Logger
}

// NewSessionFileResolver creates a resolver scanning the default Gecko
// profile locations for the current user.
func NewSessionFileResolver(logger *logging.Logger) *SessionFileResolver {
	home, _ := os.UserHomeDir()
	support := filepath.Join(home, "Library", "Application Support")

	roots := make([]string, 0, len(SessionProfileDirs))
	for _, rel := range SessionProfileDirs {
		roots = append(roots, filepath.Join(support, filepath.FromSlash(rel)))
	}
	return &SessionFileResolver{Roots: roots, logger: logger}
}

// Resolve scans every profile under every root for a tab whose recorded
// title matches the window title, returning its URL. The selected-tab index
// in the snapshot is frequently stale, so without a window title there is
// nothing trustworthy to match against and the result is empty.
func (r *SessionFileResolver) Resolve(windowTitle string) string {
	if strings.TrimSpace(windowTitle) == "" {
		return ""
	}

	for _, root := range r.Roots {
		profiles, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, profile := range profiles {
			if !profile.IsDir() {
				continue
			}
			path := filepath.Join(root, profile.Name(), "sessionstore-backups", "recovery.jsonlz4")
			if url := r.resolveFromFile(path, windowTitle); url != "" {
				return url
			}
		}
	}
	return ""
}

// resolveFromFile reads one recovery snapshot. Any per-file failure is a
// miss for that profile only.
func (r *SessionFileResolver) resolveFromFile(path, windowTitle string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	decoded, err := mozlz4.DecodeFile(data)
	if err != nil {
		r.logger.Debug("session file undecodable", "path", path, "error", err.Error())
		return ""
	}

	var session sessionStore
	if err := json.Unmarshal(decoded, &session); err != nil {
		r.logger.Debug("session file JSON malformed", "path", path, "error", err.Error())
		return ""
	}

	want := lower(strings.TrimSpace(windowTitle))
	for _, win := range session.Windows {
		for _, tab := range win.Tabs {
			if len(tab.Entries) == 0 {
				continue
			}
			last := tab.Entries[len(tab.Entries)-1]
			if titleMatches(lower(last.Title), want) {
				if url := ValidateURL(last.URL); url != "" {
					return url
				}
			}
		}
	}
	return ""
}

// titleMatches applies the tri-level comparison: exact, suffix, then
// containment. The looser levels tolerate OS-side title truncation.
func titleMatches(tabTitle, windowTitle string) bool {
	if tabTitle == "" || windowTitle == "" {
		return false
	}
	if tabTitle == windowTitle {
		return true
	}
	if strings.HasSuffix(tabTitle, windowTitle) {
		return true
	}
	return strings.Contains(tabTitle, windowTitle)
}
