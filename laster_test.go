package metha

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirLasterReturnsDefaultWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	l := DirLaster{Dir: dir, DefaultValue: "2016-01-01", ExtractorFunc: func(fi os.FileInfo) string { return "" }}
	last, err := l.Last()
	require.NoError(t, err)
	assert.Equal(t, "2016-01-01", last)
}

func TestDirLasterReturnsGreatestValue(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2016-01-01-00000001.xml.gz", "2016-03-01-00000002.xml.gz", "2016-02-01-00000003.xml.gz"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{}, 0644))
	}

	l := DirLaster{
		Dir:          dir,
		DefaultValue: "2000-01-01",
		ExtractorFunc: func(fi os.FileInfo) string {
			groups := batchFilePattern.FindStringSubmatch(fi.Name())
			if len(groups) > 1 {
				return groups[1]
			}
			return ""
		},
	}
	last, err := l.Last()
	require.NoError(t, err)
	assert.Equal(t, "2016-03-01", last)
}

func TestDirLasterMissingDirReturnsDefault(t *testing.T) {
	l := DirLaster{Dir: filepath.Join(t.TempDir(), "nope"), DefaultValue: "fallback", ExtractorFunc: func(fi os.FileInfo) string { return "" }}
	last, err := l.Last()
	require.NoError(t, err)
	assert.Equal(t, "fallback", last)
}
