package domain

import "time"

type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateError      State = "error"
)

// Progress is a snapshot of one import job.
type Progress struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	State       State     `json:"state"`
	Current     int       `json:"current"`
	Total       int       `json:"total"`
	CurrentFile string    `json:"current_file,omitempty"`
	RedirectURL string    `json:"redirect_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	Summary     *Summary  `json:"summary,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Finished reports whether the job reached a terminal state.
func (p *Progress) Finished() bool {
	return p.State == StateComplete || p.State == StateError
}

// Summary is reported once an import completes.
type Summary struct {
	Files          int     `json:"files"`
	Extracted      int     `json:"extracted"`
	New            int     `json:"new"`
	Duplicates     int     `json:"duplicates"`
	Failed         int     `json:"failed"`
	Downloaded     int     `json:"downloaded"`
	SkippedByDate  int     `json:"skipped_by_date"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Model          string  `json:"model"`
	Message        string  `json:"message"`
}
