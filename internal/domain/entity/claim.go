package entity

import "time"

// Claim is one row of the claims review table
type Claim struct {
	ID          string    `json:"id"`
	PatientName string    `json:"patient_name"`
	Hospital    string    `json:"hospital"`
	Amount      int64     `json:"amount"` // whole rupees
	Date        time.Time `json:"date"`
	FraudStatus string    `json:"fraud_status"`
	FraudReason string    `json:"fraud_reason,omitempty"`
	Location    string    `json:"location"`
	ClaimType   string    `json:"claim_type"`
	Disease     string    `json:"disease,omitempty"`
	Treatment   string    `json:"treatment,omitempty"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ClaimFilter narrows the claims table. Empty Status or Location means FilterAll.
type ClaimFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	Location string `form:"location"`
}

// Normalized returns the filter with empty values replaced by FilterAll
func (f ClaimFilter) Normalized() ClaimFilter {
	if f.Status == "" {
		f.Status = FilterAll
	}
	if f.Location == "" {
		f.Location = FilterAll
	}
	return f
}
