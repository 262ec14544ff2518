package port

import (
	"context"
	"io"

	"github.com/garyjia/fraudguard/internal/domain/entity"
)

// FraudDetectionClient submits a claim document to the external fraud detection service.
// A nil error means the service processed the document and returned a verdict.
type FraudDetectionClient interface {
	Analyze(ctx context.Context, doc entity.Document) (*entity.ExtractedData, error)
}

// MessageSender delivers a plain-text notification to the review team's chat
type MessageSender interface {
	SendText(ctx context.Context, content string) error
}

// ClaimDataset reads and writes claims in a spreadsheet
type ClaimDataset interface {
	Load(ctx context.Context, path string) ([]*entity.Claim, error)
	Write(ctx context.Context, claims []*entity.Claim, w io.Writer) error
}
