package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

const versionTimeFormat = "20060102150405"

// rollbackMarker separates the forward script from the rollback
// script inside a unit file. Everything above it is applied by
// migrate up; everything below is stored in the ledger row and run by
// migrate rollback.
const rollbackMarker = "-- rollback"

var unitFilePattern = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

// Unit is one versioned, atomic set of schema-change statements.
type Unit struct {
	Version  string
	Name     string
	FileName string
	Up       string
	Down     string
}

// discoverUnits reads every unit file in dir, sorted ascending by
// version. Discovery is a pure read; re-running it never double-applies
// anything because application is keyed on the ledger.
func discoverUnits(dir string) ([]Unit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var units []Unit
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := unitFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read unit %s: %w", entry.Name(), err)
		}

		up, down := splitUnitScript(string(content))
		units = append(units, Unit{
			Version:  match[1],
			Name:     humanizeName(match[2]),
			FileName: entry.Name(),
			Up:       up,
			Down:     down,
		})
	}

	sort.Slice(units, func(i, j int) bool {
		return units[i].Version < units[j].Version
	})
	return units, nil
}

func splitUnitScript(content string) (up, down string) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), rollbackMarker) {
			return strings.TrimSpace(strings.Join(lines[:i], "\n")),
				strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return strings.TrimSpace(content), ""
}

// humanizeName turns a snake_case slug into a Title Case display name:
// "add_widgets_table" becomes "Add Widgets Table".
func humanizeName(slug string) string {
	words := strings.Split(slug, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// slugify is the inverse direction, used by Generate: lowercase,
// non-alphanumerics collapsed to single underscores.
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Generate writes an empty, timestamp-prefixed unit template into dir
// and returns its path. It never touches the ledger.
func Generate(dir, name string) (string, error) {
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q produces an empty slug", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	version := time.Now().UTC().Format(versionTimeFormat)
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, slug))

	template := fmt.Sprintf(`-- %s
-- Statements above the marker run on migrate up.

%s
-- Statements below the marker run on migrate rollback.
`, humanizeName(slug), rollbackMarker)

	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
