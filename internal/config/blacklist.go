package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ParseBlacklistArg interprets the -blacklist argument as either a path to a
// file containing a comma-separated extension list, or the comma-separated
// list itself. It returns nil when the argument is empty (meaning "use the
// defaults") and an empty slice when the argument was provided but held no
// usable entries (meaning "filter nothing").
func ParseBlacklistArg(input string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	var raw string
	if info, err := os.Stat(input); err == nil && info.Mode().IsRegular() {
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("read blacklist file %q: %w", input, err)
		}
		raw = string(data)
	} else if strings.ContainsRune(input, os.PathSeparator) {
		return nil, fmt.Errorf("blacklist argument %q looks like a path but the file does not exist", input)
	} else {
		raw = input
	}

	return NormaliseExtensions(strings.Split(raw, ",")), nil
}

// NormaliseExtensions lowercases entries, ensures a leading dot, and drops
// blanks and duplicates. The result is sorted and never nil.
func NormaliseExtensions(entries []string) []string {
	unique := make(map[string]struct{}, len(entries))
	cleaned := make([]string, 0, len(entries))
	for _, entry := range entries {
		ext := strings.ToLower(strings.TrimSpace(entry))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := unique[ext]; ok {
			continue
		}
		unique[ext] = struct{}{}
		cleaned = append(cleaned, ext)
	}
	sort.Strings(cleaned)
	return cleaned
}
