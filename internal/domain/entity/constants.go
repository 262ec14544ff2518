package entity

// Upload status constants for UploadedFile
const (
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

// Fraud status constants. Pending only appears on claims that have not been analyzed.
const (
	FraudStatusClean      = "clean"
	FraudStatusSuspicious = "suspicious"
	FraudStatusFraudulent = "fraudulent"
	FraudStatusPending    = "pending"
)

// Claim source constants
const (
	ClaimSourceSeed    = "seed"
	ClaimSourceDataset = "dataset"
	ClaimSourceUpload  = "upload"
)

// FilterAll disables a status or location filter
const FilterAll = "all"

// IsAnalyzedFraudStatus reports whether s is a verdict the fraud service can return
func IsAnalyzedFraudStatus(s string) bool {
	switch s {
	case FraudStatusClean, FraudStatusSuspicious, FraudStatusFraudulent:
		return true
	}
	return false
}

// IsClaimFraudStatus reports whether s is a valid status for a claim row
func IsClaimFraudStatus(s string) bool {
	return s == FraudStatusPending || IsAnalyzedFraudStatus(s)
}
