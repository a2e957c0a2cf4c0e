// model/application.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft             Status = "draft"
	StatusSubmitted         Status = "submitted"
	StatusUnderReview       Status = "under_review"
	StatusDocumentsVerified Status = "documents_verified"
	StatusPaymentVerified   Status = "payment_verified"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusInProgress        Status = "in_progress"
	StatusLetterUploaded    Status = "admission_letter_uploaded"
	StatusLetterApproved    Status = "admission_letter_approved"
	StatusJW02Uploaded      Status = "jw02_uploaded"
	StatusJW02Approved      Status = "jw02_approved"
	StatusLetterPending     Status = "letter_pending"
	StatusJW02Pending       Status = "jw02_pending"
	StatusComplete          Status = "complete"
)

type Application struct {
	ID              int64      `json:"app_id"`
	ScholarshipID   int64      `json:"scholarship_id"`
	ApplicantID     int64      `json:"applicant_id"`
	Status          Status     `json:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	AssignedAgentID *int64     `json:"assigned_agent,omitempty"`
	AssignedHQID    *int64     `json:"assigned_hq,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	AppliedAt       time.Time  `json:"applied_at"`
}

// StatusHistoryEntry is immutable once written; ordering by changed_at
// descending is the canonical read order.
type StatusHistoryEntry struct {
	ID        int64     `json:"id"`
	AppID     int64     `json:"app_id"`
	OldStatus *Status   `json:"old_status,omitempty"`
	NewStatus Status    `json:"new_status"`
	ChangedBy int64     `json:"changed_by"`
	Note      *string   `json:"note,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type DocumentStatus string

const (
	DocPendingVerification DocumentStatus = "pending_verification"
	DocApproved            DocumentStatus = "approved"
	DocRevisionRequested   DocumentStatus = "revision_requested"
)

type PaymentStatus string

const (
	PaymentUnderReview PaymentStatus = "under_review"
	PaymentCompleted   PaymentStatus = "completed"
	PaymentFailed      PaymentStatus = "failed"
)

// Payment is a scholarship fee payment recorded by the office for an
// application; review_note carries the approval or rejection note.
type Payment struct {
	ID            int64           `json:"id"`
	AppID         int64           `json:"app_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReceiptKey    string          `json:"receipt_key"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Status        PaymentStatus   `json:"status"`
	ReviewNote    *string         `json:"review_note,omitempty"`
	ReviewedBy    *int64          `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AdmissionLetter and JW02Form rows carry a file key only; file storage
// itself lives outside this service.
type AdmissionLetter struct {
	ID           int64          `json:"id"`
	AppID        int64          `json:"app_id"`
	UploadedBy   int64          `json:"uploaded_by"`
	FileKey      string         `json:"file_key"`
	Status       DocumentStatus `json:"status"`
	RevisionNote *string        `json:"revision_note,omitempty"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy   *int64         `json:"approved_by,omitempty"`
}

type JW02Form struct {
	ID           int64          `json:"id"`
	AppID        int64          `json:"app_id"`
	UploadedBy   int64          `json:"uploaded_by"`
	FileKey      string         `json:"file_key"`
	Status       DocumentStatus `json:"status"`
	RevisionNote *string        `json:"revision_note,omitempty"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy   *int64         `json:"approved_by,omitempty"`
}
