package entity

import (
	"errors"
	"time"
)

// Submission statuses
const (
	SubmissionStatusPending = "PENDING"
	SubmissionStatusSending = "SENDING"
	SubmissionStatusSent    = "SENT"
	SubmissionStatusFailed  = "FAILED"
)

var (
	// ErrSubmissionNotFound is returned when no submission matches a lookup
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrSubmissionNotClaimable is returned when a delivery attempt finds the
	// submission no longer PENDING
	ErrSubmissionNotClaimable = errors.New("submission is not pending")
)

// Submission is the delivery record of an e-mailed reimbursement request
type Submission struct {
	ID              int64      `json:"id"`
	PublicID        string     `json:"public_id"`
	EmployeeName    string     `json:"employee_name"`
	To              []string   `json:"to"`
	Cc              []string   `json:"cc,omitempty"`
	Subject         string     `json:"subject"`
	Message         string     `json:"message"`
	Total           float64    `json:"total"`
	RequestJSON     string     `json:"request_json"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	AttachmentCount int        `json:"attachment_count"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsFinal reports whether no further delivery will be attempted.
func (s *Submission) IsFinal() bool {
	return s.Status == SubmissionStatusSent || s.Status == SubmissionStatusFailed
}

// Attachment is a decoded file sent along with a submission.
type Attachment struct {
	ID           int64     `json:"id"`
	SubmissionID int64     `json:"submission_id"`
	Position     int       `json:"position"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	FilePath     string    `json:"file_path"`
	PageCount    int       `json:"page_count,omitempty"`
	Content      []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
