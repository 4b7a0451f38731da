package metha

import (
	"os"
	"sort"
)

// DirLaster recovers the most recent datestamp already present in a
// directory of harvested batch files, by applying ExtractorFunc to every
// entry and taking the lexicographically greatest non-empty result. It is
// a fallback for when a FileRecordWriter's own in-memory latest-datestamp
// tracking has been lost (process restarted with a fresh writer instance
// pointed at a pre-populated directory).
type DirLaster struct {
	Dir           string
	DefaultValue  string
	ExtractorFunc func(fi os.FileInfo) string
}

// Last returns the most recent datestamp found in Dir, or DefaultValue if
// the directory is empty or no entry name matched ExtractorFunc.
func (d DirLaster) Last() (string, error) {
	entries, err := os.ReadDir(d.Dir)
	if os.IsNotExist(err) {
		return d.DefaultValue, nil
	}
	if err != nil {
		return "", err
	}

	var values []string
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			return "", err
		}
		if v := d.ExtractorFunc(fi); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return d.DefaultValue, nil
	}
	sort.Strings(values)
	return values[len(values)-1], nil
}
