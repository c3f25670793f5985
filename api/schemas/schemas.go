package schemas

import (
	"strings"
	"time"
)

// -- Inputs supplied by collaborators --

// Job describes the posting an attempt targets. It is immutable for the
// lifetime of one attempt.
type Job struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	URL        string  `json:"job_url"`
	Company    string  `json:"company"`
	Title      string  `json:"title"`
	MatchScore float64 `json:"match_score"`
	Status     string  `json:"status"`
}

// WorkExperience is one entry of a profile's employment history. StartDate is
// kept as the string the profile parser produced, e.g. "2019-03" or "March 2019".
type WorkExperience struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Profile holds the contact details and history used for deterministic mapping.
type Profile struct {
	UserID         string           `json:"id"`
	FullName       string           `json:"full_name"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone_number"`
	WorkExperience []WorkExperience `json:"work_experience"`
	Skills         []string         `json:"skills"`
}

// FirstName returns the first whitespace-separated part of the full name.
func (p Profile) FirstName() string {
	parts := strings.Fields(p.FullName)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName returns the last part of the full name, or "" for single names.
func (p Profile) LastName() string {
	parts := strings.Fields(p.FullName)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// -- Question bank --

// Category groups learned answers by how carefully they must be stored.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategorySalary     Category = "salary"
	CategoryVisa       Category = "visa"
	CategoryExperience Category = "experience"
	CategorySensitive  Category = "sensitive"
)

// RequiresEncryption reports whether answers in this category are stored as ciphertext.
func (c Category) RequiresEncryption() bool {
	switch c {
	case CategorySalary, CategoryVisa, CategorySensitive:
		return true
	}
	return false
}

// BankEntry is one learned question/answer pair. Answer may be ciphertext.
type BankEntry struct {
	UserID    string    `json:"user_id"`
	Question  string    `json:"question_text"`
	Answer    string    `json:"answer_text"`
	Category  Category  `json:"category"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// -- Outputs --

// Status is the terminal status of an application attempt.
type Status string

const (
	StatusSuccess    Status = "success"
	StatusWarning    Status = "warning"
	StatusError      Status = "error"
	StatusDryRunStop Status = "dry_run_stop"
	StatusCancelled  Status = "cancelled"
)

// Outcome is returned exactly once per attempt.
type Outcome struct {
	AttemptID      string   `json:"attempt_id"`
	JobID          string   `json:"job_id"`
	Status         Status   `json:"status"`
	Message        string   `json:"message"`
	SkippedFields  []string `json:"skipped_fields"`
	ScreenshotPath string   `json:"screenshot_path,omitempty"`
	ProofURI       string   `json:"proof_uri,omitempty"`
	Steps          int      `json:"steps"`
}

// ApplicationStatusApplied is written to both the application log and the job.
const ApplicationStatusApplied = "applied"

// ApplicationRecord is the entry written to the application log after a submit click.
type ApplicationRecord struct {
	UserID         string  `json:"user_id"`
	JobID          string  `json:"job_id"`
	Company        string  `json:"company"`
	RoleTitle      string  `json:"role_title"`
	Status         string  `json:"status"`
	MatchScore     float64 `json:"match_score"`
	ScreenshotPath string  `json:"success_screenshot_path"`
}

// RateState is a point-in-time view of the rate governor's counters.
type RateState struct {
	ActionsInWindow int       `json:"actions_in_window"`
	WindowStart     time.Time `json:"window_start"`
	LastActionAt    time.Time `json:"last_action_at"`
	AppliesToday    int       `json:"applies_today"`
	LastResetDate   string    `json:"last_reset_date"`
	MaxDaily        int       `json:"max_daily"`
}
