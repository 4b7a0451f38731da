package metha

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// batchFilePattern extracts the leading datestamp (group 1) and the sequence
// number (group 2) from a batch filename of the form "<datestamp>-<seq>.xml.gz".
var batchFilePattern = regexp.MustCompile(`^([0-9T:Z.-]+)-([0-9]{8})\.xml\.gz$`)

// RecordWriter accepts a batch of record elements from one ListRecords
// response, persists them however it sees fit, and reports the most recent
// record header datestamp observed so far across all batches (or "" if
// unavailable). The Harvester treats Write as opaque and never inspects
// record contents itself.
//
// Write must be idempotent per resumption token: if the driver re-issues a
// request for a token whose prior response was already partially written
// (e.g. the process was killed mid-write), a second Write call for the
// same batch must not corrupt or duplicate persisted state.
type RecordWriter interface {
	Write(records []Record) (latestDatestamp string, err error)
}

// FileRecordWriter is the default RecordWriter: each batch is serialized
// back to OAI-PMH XML and written as a single gzip-compressed file under
// Dir, via a temp-file-then-rename pipeline. The write is atomic per
// batch: a batch is visible under its final name only
// after the gzip stream has been fully flushed, so a crash mid-batch leaves
// no partial file where a later run would look for one.
//
// FileRecordWriter does not recognize a batch it has already written: each
// Write call stores its records in a new file, so a re-issued batch is
// persisted a second time.
type FileRecordWriter struct {
	Dir string

	mu     sync.Mutex
	seq    int
	latest string
}

type batchDocument struct {
	XMLName xml.Name `xml:"records"`
	Records []Record `xml:"record"`
}

// NewFileRecordWriter returns a FileRecordWriter rooted at dir, which is
// created on first write if it does not yet exist. If dir already holds
// batch files from a prior process (this writer instance has no in-memory
// memory of them), the latest-datestamp tracking and the sequence number are
// bootstrapped from the existing filenames via DirLaster.
func NewFileRecordWriter(dir string) *FileRecordWriter {
	laster := DirLaster{
		Dir:          dir,
		DefaultValue: "",
		ExtractorFunc: func(fi os.FileInfo) string {
			groups := batchFilePattern.FindStringSubmatch(fi.Name())
			if len(groups) > 1 {
				return groups[1]
			}
			return ""
		},
	}
	latest, _ := laster.Last()

	seqLaster := DirLaster{
		Dir: dir,
		ExtractorFunc: func(fi os.FileInfo) string {
			if groups := batchFilePattern.FindStringSubmatch(fi.Name()); len(groups) > 2 {
				return groups[2]
			}
			return ""
		},
	}
	seq := 0
	if last, _ := seqLaster.Last(); last != "" {
		if n, err := strconv.Atoi(last); err == nil {
			seq = n + 1
		}
	}
	return &FileRecordWriter{Dir: dir, seq: seq, latest: latest}
}

// Write implements RecordWriter.
func (w *FileRecordWriter) Write(records []Record) (string, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", err
	}

	w.mu.Lock()
	seq := w.seq
	w.seq++
	w.latest = latestDatestamp(records, w.latest)
	latest := w.latest
	w.mu.Unlock()

	if len(records) == 0 {
		return latest, nil
	}

	doc := batchDocument{Records: records}
	b, err := xml.Marshal(doc)
	if err != nil {
		return "", err
	}

	tmp := filepath.Join(w.Dir, fmt.Sprintf(".batch-%08d-%s.xml", seq, uuid.New().String()))
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return "", err
	}

	dst := filepath.Join(w.Dir, fmt.Sprintf("%s-%08d.xml.gz", sanitizeDatestamp(latest), seq))
	tmpGz := tmp + ".gz"
	if err := MoveAndCompress(tmp, tmpGz); err != nil {
		return "", err
	}
	if err := os.Rename(tmpGz, dst); err != nil {
		return "", err
	}
	return latest, nil
}

// latestDatestamp returns the lexicographically greatest header datestamp
// across records, starting from prior (the datestamp observed so far by an
// earlier batch). OAI-PMH datestamps are ISO 8601 and so sort correctly as
// plain strings.
func latestDatestamp(records []Record, prior string) string {
	latest := prior
	for _, r := range records {
		if r.Header.DateStamp > latest {
			latest = r.Header.DateStamp
		}
	}
	return latest
}

func sanitizeDatestamp(d string) string {
	if d == "" {
		return "unknown-date"
	}
	return d
}
