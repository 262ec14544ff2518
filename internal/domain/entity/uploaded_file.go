package entity

import (
	"strings"
	"time"
)

// Document is a claim document handed to the uploader: raw bytes plus the metadata
// detected at intake.
type Document struct {
	Name      string
	Content   []byte
	MediaType string
	Pages     int
}

// Size returns the document size in bytes
func (d Document) Size() int64 {
	return int64(len(d.Content))
}

// ExtractedData is the structured payload returned by the fraud detection service
// for a successfully processed document.
type ExtractedData struct {
	ClaimID     string  `json:"claimId,omitempty"`
	PatientName string  `json:"patientName,omitempty"`
	Hospital    string  `json:"hospital,omitempty"`
	Region      string  `json:"region,omitempty"`
	Pincode     string  `json:"pincode,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Disease     string  `json:"disease,omitempty"`
	Treatment   string  `json:"treatment,omitempty"`
	FraudStatus string  `json:"fraudStatus"`
	FraudReason string  `json:"fraudReason,omitempty"`
}

// UploadedFile is one document of an upload batch and its review outcome.
// FraudStatus and ExtractedData are set only when Status is completed; Error only when failed.
type UploadedFile struct {
	ID            string         `json:"id"`
	BatchID       string         `json:"batch_id"`
	Name          string         `json:"name"`
	SizeLabel     string         `json:"size"`
	MediaType     string         `json:"media_type"`
	Pages         int            `json:"pages,omitempty"`
	Status        string         `json:"status"`
	FraudStatus   string         `json:"fraud_status,omitempty"`
	ExtractedData *ExtractedData `json:"extracted_data,omitempty"`
	Error         string         `json:"error,omitempty"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
}

// IsTerminal reports whether the file has finished processing
func (f *UploadedFile) IsTerminal() bool {
	return f.Status == FileStatusCompleted || f.Status == FileStatusFailed
}

// Clone returns a deep copy safe to hand to readers
func (f *UploadedFile) Clone() *UploadedFile {
	cp := *f
	if f.ExtractedData != nil {
		data := *f.ExtractedData
		cp.ExtractedData = &data
	}
	if f.ResolvedAt != nil {
		t := *f.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

// Batch identifies one upload action and the entries it created, in submission order.
type Batch struct {
	ID          string    `json:"id"`
	FileIDs     []string  `json:"file_ids"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Size returns the number of files in the batch
func (b *Batch) Size() int {
	return len(b.FileIDs)
}

// Media types accepted for fraud review
const (
	MediaTypePDF         = "application/pdf"
	MediaTypeImagePrefix = "image/"
)

// IsSupportedMediaType reports whether a document of this media type can be submitted.
// Parameters such as charset are ignored.
func IsSupportedMediaType(mediaType string) bool {
	base, _, _ := strings.Cut(mediaType, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	return base == MediaTypePDF || (strings.HasPrefix(base, MediaTypeImagePrefix) && len(base) > len(MediaTypeImagePrefix))
}

// BatchProgress summarizes how far a batch has been processed.
// Progress is Resolved / Total * 100.
type BatchProgress struct {
	BatchID   string  `json:"batch_id"`
	Total     int     `json:"total"`
	Resolved  int     `json:"resolved"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Progress  float64 `json:"progress"`
	Done      bool    `json:"done"`
}
