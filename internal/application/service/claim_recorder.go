package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/garyjia/fraudguard/internal/application/dispatcher"
	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/garyjia/fraudguard/internal/domain/event"
)

// uploadClaimPrefix marks claims created from documents that carried no claim number
const uploadClaimPrefix = "UPL-"

// ClaimRecorder adds every completed upload to the claims review table
type ClaimRecorder struct {
	board  *UploadBoard
	repo   port.ClaimRepository
	logger Logger
	now    func() time.Time
}

// NewClaimRecorder creates a new ClaimRecorder
func NewClaimRecorder(board *UploadBoard, repo port.ClaimRepository, logger Logger) *ClaimRecorder {
	return &ClaimRecorder{
		board:  board,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Register subscribes the recorder to file.completed events
func (r *ClaimRecorder) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeFileCompleted, "claims.recorder", r.Handle)
}

// Handle upserts the claim extracted from a completed upload
func (r *ClaimRecorder) Handle(ctx context.Context, evt *event.Event) error {
	if evt.Type != event.TypeFileCompleted {
		return nil
	}

	file, err := r.board.File(evt.FileID)
	if err != nil {
		return fmt.Errorf("load upload entry: %w", err)
	}
	if file.ExtractedData == nil {
		return nil
	}

	claim := ClaimFromUpload(file, r.now())
	if err := r.repo.Upsert(ctx, claim); err != nil {
		r.logger.Error("Failed to record uploaded claim", "error", err, "file_id", file.ID, "claim_id", claim.ID)
		return fmt.Errorf("record claim: %w", err)
	}

	r.logger.Info("Uploaded claim recorded",
		"claim_id", claim.ID,
		"file_id", file.ID,
		"fraud_status", claim.FraudStatus,
	)
	return nil
}

// ClaimFromUpload maps a completed upload entry to a claims table row
func ClaimFromUpload(file *entity.UploadedFile, now time.Time) *entity.Claim {
	data := file.ExtractedData

	id := strings.TrimSpace(data.ClaimID)
	if id == "" {
		short := file.ID
		if len(short) > 8 {
			short = short[:8]
		}
		id = uploadClaimPrefix + strings.ToUpper(short)
	}

	date := now
	if file.ResolvedAt != nil {
		date = *file.ResolvedAt
	}

	return &entity.Claim{
		ID:          id,
		PatientName: data.PatientName,
		Hospital:    data.Hospital,
		Amount:      int64(math.Round(data.Amount)),
		Date:        date.UTC(),
		FraudStatus: data.FraudStatus,
		FraudReason: data.FraudReason,
		Location:    data.Region,
		ClaimType:   data.Treatment,
		Disease:     data.Disease,
		Treatment:   data.Treatment,
		Source:      entity.ClaimSourceUpload,
	}
}
