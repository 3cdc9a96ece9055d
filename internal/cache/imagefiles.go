package cache

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	slugNonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	slugSuffixNum = regexp.MustCompile(`-(\d+)$`)
)

// Slugify lowercases title and replaces runs of non-alphanumeric characters
// with a single hyphen, trimming leading/trailing hyphens. This mirrors the
// filename convention used for generated section images.
func Slugify(title string) string {
	s := slugNonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// ResolveNewestImage finds the image file in entries (read from dir) whose
// basename matches Slugify(title) optionally followed by a numeric suffix
// ("-2", "-3", ...), returning the path with the highest suffix, or "" if
// none match. Among matches, the newest numeric suffix wins.
func ResolveNewestImage(entries []fs.DirEntry, dir, title string) string {
	want := Slugify(title)
	best := ""
	bestN := -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		n := 0
		stem := base
		if m := slugSuffixNum.FindStringSubmatch(base); m != nil {
			stem = strings.TrimSuffix(base, m[0])
			n, _ = strconv.Atoi(m[1])
		}
		if stem != want {
			continue
		}
		if n > bestN {
			bestN = n
			best = filepath.Join(dir, name)
		}
	}
	return best
}
