package entity

// Risk levels for regional fraud rates
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Fraud type categories
const (
	FraudTypeOverbilling     = "Overbilling"
	FraudTypeFakeHospital    = "Fake Hospital"
	FraudTypeDuplicateClaims = "Duplicate Claims"
	FraudTypeForgery         = "Document Forgery"
	FraudTypeOther           = "Other"
)

// FraudTypes lists the categories in display order
var FraudTypes = []string{
	FraudTypeOverbilling,
	FraudTypeFakeHospital,
	FraudTypeDuplicateClaims,
	FraudTypeForgery,
	FraudTypeOther,
}

// Overview holds headline totals for the dashboard
type Overview struct {
	TotalClaims  int     `json:"total_claims"`
	Clean        int     `json:"clean"`
	Suspicious   int     `json:"suspicious"`
	Fraudulent   int     `json:"fraudulent"`
	Pending      int     `json:"pending"`
	FraudRate    float64 `json:"fraud_rate"`
	AmountAtRisk int64   `json:"amount_at_risk"`
}

// RegionStat is the fraud rate of one location
type RegionStat struct {
	Region     string  `json:"region"`
	Total      int     `json:"total"`
	Fraudulent int     `json:"fraudulent"`
	Percentage float64 `json:"percentage"`
	Risk       string  `json:"risk"`
}

// HospitalStat is one row of the hospital risk table
type HospitalStat struct {
	Hospital   string  `json:"hospital"`
	Claims     int     `json:"claims"`
	Fraudulent int     `json:"fraudulent"`
	Amount     int64   `json:"amount"`
	FraudRate  float64 `json:"fraud_rate"`
}

// FraudTypeStat is one slice of the fraud type distribution
type FraudTypeStat struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// AnalyticsSummary is everything the analytics dashboard renders
type AnalyticsSummary struct {
	Overview   Overview        `json:"overview"`
	Regions    []RegionStat    `json:"regions"`
	Hospitals  []HospitalStat  `json:"hospitals"`
	FraudTypes []FraudTypeStat `json:"fraud_types"`
}
