package services

import (
	"fmt"
	"time"

	"github.com/ekaya-inc/epd-normalizer/pkg/translation"
)

// FileStatus is the outcome of one document.
type FileStatus string

const (
	FileStored      FileStatus = "stored"
	FileSkipped     FileStatus = "skipped" // already present
	FileReadFailed  FileStatus = "read_failed"
	FileParseFailed FileStatus = "parse_failed"
	FileStoreFailed FileStatus = "store_failed"
)

// Processed reports whether the document ended up in the database.
func (s FileStatus) Processed() bool {
	return s == FileStored || s == FileSkipped
}

// FolderStatus is the outcome of one datastock folder.
type FolderStatus string

const (
	FolderCompleted FolderStatus = "completed"
	FolderSkipped   FolderStatus = "skipped" // name did not match the datastock pattern
	FolderFailed    FolderStatus = "failed"  // datastock or file listing unavailable
)

// FileResult records what happened to one document.
type FileResult struct {
	Path      string        `json:"path"`
	ProcessID string        `json:"process_id,omitempty"`
	Status    FileStatus    `json:"status"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// FolderReport aggregates the documents of one datastock folder.
type FolderReport struct {
	Folder        string       `json:"folder"`
	DataStockName string       `json:"datastock_name,omitempty"`
	DataStockUUID string       `json:"datastock_uuid,omitempty"`
	DataStockID   int64        `json:"datastock_id,omitempty"`
	Status        FolderStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Files         []FileResult `json:"files"`
}

// Total returns the number of documents attempted.
func (f *FolderReport) Total() int {
	return len(f.Files)
}

// Processed returns the number of documents stored or already present.
func (f *FolderReport) Processed() int {
	n := 0
	for _, r := range f.Files {
		if r.Status.Processed() {
			n++
		}
	}
	return n
}

// Summary renders "<processed> of <total> processed".
func (f *FolderReport) Summary() string {
	return summary(f.Processed(), f.Total())
}

// Report is the result of one ingestion run.
type Report struct {
	RunID        string               `json:"run_id"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   time.Time            `json:"finished_at"`
	Folders      []FolderReport       `json:"folders"`
	Untranslated *translation.TermSet `json:"-"`
}

// NewReport creates an empty report for runID.
func NewReport(runID string) *Report {
	return &Report{
		RunID:        runID,
		StartedAt:    time.Now().UTC(),
		Untranslated: translation.NewTermSet(),
	}
}

// Total returns the number of documents attempted across all folders.
func (r *Report) Total() int {
	n := 0
	for i := range r.Folders {
		n += r.Folders[i].Total()
	}
	return n
}

// Processed returns the number of documents stored or already present across all folders.
func (r *Report) Processed() int {
	n := 0
	for i := range r.Folders {
		n += r.Folders[i].Processed()
	}
	return n
}

// Summary renders "<processed> of <total> processed" for the whole run.
func (r *Report) Summary() string {
	return summary(r.Processed(), r.Total())
}

// StatusCounts returns the number of documents per status.
func (r *Report) StatusCounts() map[FileStatus]int {
	counts := make(map[FileStatus]int)
	for i := range r.Folders {
		for _, f := range r.Folders[i].Files {
			counts[f.Status]++
		}
	}
	return counts
}

// WriteUntranslated writes the untranslated terms, one per line.
func (r *Report) WriteUntranslated(path string) error {
	return r.Untranslated.WriteFile(path)
}

func summary(processed, total int) string {
	return fmt.Sprintf("%d of %d processed", processed, total)
}
