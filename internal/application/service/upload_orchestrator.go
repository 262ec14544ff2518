package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/fraudguard/internal/application/dispatcher"
	"github.com/garyjia/fraudguard/internal/application/port"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/garyjia/fraudguard/internal/domain/event"
	"github.com/garyjia/fraudguard/pkg/utils"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
)

// ErrUnsupportedMediaType is returned when a batch contains a document that is neither a PDF nor an image.
// The whole batch is rejected and no entry is created.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Failure messages shown on failed entries
const (
	MsgNetworkError     = "network error: fraud detection service unreachable"
	MsgInvalidResponse  = "invalid response body"
	MsgProcessingFailed = "Processing failed"
)

// Submission is a batch whose entries exist on the board but whose documents
// have not been sent yet
type Submission struct {
	Batch *entity.Batch
	Files []*entity.UploadedFile

	documents []entity.Document
}

// UploadOrchestrator submits claim documents to the fraud detection service one
// batch at a time and records each file's outcome on the board
type UploadOrchestrator struct {
	board       *UploadBoard
	client      port.FraudDetectionClient
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	concurrency int
	now         func() time.Time
}

// OrchestratorOption configures the orchestrator
type OrchestratorOption func(*UploadOrchestrator)

// WithConcurrency sets how many files of a batch are in flight at once. 1 keeps strict submission order.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *UploadOrchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// NewUploadOrchestrator creates a new orchestrator
func NewUploadOrchestrator(
	board *UploadBoard,
	client port.FraudDetectionClient,
	events dispatcher.Dispatcher,
	logger Logger,
	opts ...OrchestratorOption,
) *UploadOrchestrator {
	o := &UploadOrchestrator{
		board:       board,
		client:      client,
		dispatcher:  events,
		logger:      logger,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Board returns the board the orchestrator writes to
func (o *UploadOrchestrator) Board() *UploadBoard {
	return o.board
}

// SubmitBatch records an entry per document and processes them all. It returns once
// every entry is completed or failed. Per-file failures are recorded on the entries,
// not returned.
func (o *UploadOrchestrator) SubmitBatch(ctx context.Context, documents []entity.Document) (*entity.Batch, error) {
	sub, err := o.Begin(documents)
	if err != nil {
		return nil, err
	}
	o.Run(ctx, sub)
	return sub.Batch, nil
}

// Begin validates the documents and records them as processing entries.
// An empty batch produces an empty submission and touches nothing.
func (o *UploadOrchestrator) Begin(documents []entity.Document) (*Submission, error) {
	for _, doc := range documents {
		if !entity.IsSupportedMediaType(doc.MediaType) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedMediaType, doc.Name, doc.MediaType)
		}
	}

	submittedAt := o.now()
	sub := &Submission{
		Batch: &entity.Batch{
			ID:          uuid.NewString(),
			FileIDs:     make([]string, 0, len(documents)),
			SubmittedAt: submittedAt,
		},
		Files:     make([]*entity.UploadedFile, 0, len(documents)),
		documents: documents,
	}
	if len(documents) == 0 {
		return sub, nil
	}

	for _, doc := range documents {
		file := &entity.UploadedFile{
			ID:          uuid.NewString(),
			BatchID:     sub.Batch.ID,
			Name:        doc.Name,
			SizeLabel:   utils.FormatSizeLabel(doc.Size()),
			MediaType:   doc.MediaType,
			Pages:       doc.Pages,
			Status:      entity.FileStatusProcessing,
			SubmittedAt: submittedAt,
		}
		sub.Batch.FileIDs = append(sub.Batch.FileIDs, file.ID)
		sub.Files = append(sub.Files, file)
	}

	o.board.add(sub.Batch, sub.Files)

	o.logger.Info("Upload batch accepted",
		"batch_id", sub.Batch.ID,
		"file_count", sub.Batch.Size(),
	)

	return sub, nil
}

// Run sends every document of the submission and resolves its entry.
// Cancelling ctx fails the remaining files as unreachable; it never leaves an entry processing.
func (o *UploadOrchestrator) Run(ctx context.Context, sub *Submission) {
	n := sub.Batch.Size()
	if n == 0 {
		return
	}

	o.publish(ctx, event.NewEvent(event.TypeBatchStarted, sub.Batch.ID, map[string]interface{}{
		event.KeyFileCount: n,
	}))

	if o.concurrency <= 1 || n == 1 {
		for i, fileID := range sub.Batch.FileIDs {
			o.process(ctx, sub.Batch.ID, fileID, sub.documents[i])
		}
	} else {
		p := pool.New().WithMaxGoroutines(o.concurrency)
		for i, fileID := range sub.Batch.FileIDs {
			doc := sub.documents[i]
			p.Go(func() {
				o.process(ctx, sub.Batch.ID, fileID, doc)
			})
		}
		p.Wait()
	}

	progress, _ := o.board.BatchProgress(sub.Batch.ID)

	o.logger.Info("Upload batch finished",
		"batch_id", sub.Batch.ID,
		"completed", progress.Completed,
		"failed", progress.Failed,
	)

	o.publish(ctx, event.NewEvent(event.TypeBatchFinished, sub.Batch.ID, map[string]interface{}{
		event.KeyFileCount: n,
		event.KeyCompleted: progress.Completed,
		event.KeyFailed:    progress.Failed,
		event.KeyProgress:  progress.Progress,
	}))
}

func (o *UploadOrchestrator) process(ctx context.Context, batchID, fileID string, doc entity.Document) {
	data, err := o.client.Analyze(ctx, doc)
	if err != nil {
		message := FailureMessage(err)
		if _, ferr := o.board.fail(fileID, message); ferr != nil {
			o.logger.Error("Failed to record upload failure", "file_id", fileID, "error", ferr)
			return
		}

		o.logger.Error("Fraud detection failed",
			"batch_id", batchID,
			"file_id", fileID,
			"file_name", doc.Name,
			"error", err,
		)
		o.publish(ctx, event.NewFileEvent(event.TypeFileFailed, batchID, fileID, map[string]interface{}{
			event.KeyFileName: doc.Name,
			event.KeyError:    message,
			event.KeyProgress: o.batchProgress(batchID),
		}))
		return
	}

	file, err := o.board.complete(fileID, data)
	if err != nil {
		o.logger.Error("Failed to record upload result", "file_id", fileID, "error", err)
		return
	}

	o.logger.Info("Fraud detection completed",
		"batch_id", batchID,
		"file_id", fileID,
		"file_name", doc.Name,
		"fraud_status", file.FraudStatus,
	)
	o.publish(ctx, event.NewFileEvent(event.TypeFileCompleted, batchID, fileID, map[string]interface{}{
		event.KeyFileName:    doc.Name,
		event.KeyFraudStatus: file.FraudStatus,
		event.KeyProgress:    o.batchProgress(batchID),
	}))
}

func (o *UploadOrchestrator) batchProgress(batchID string) float64 {
	p, _ := o.board.BatchProgress(batchID)
	return p.Progress
}

// publish delivers an event to subscribers. Subscriber failures never affect the batch.
func (o *UploadOrchestrator) publish(ctx context.Context, evt *event.Event) {
	if o.dispatcher == nil {
		return
	}
	if err := o.dispatcher.Dispatch(context.WithoutCancel(ctx), evt); err != nil {
		o.logger.Error("Event subscribers failed",
			"event_type", evt.Type,
			"batch_id", evt.BatchID,
			"error", err,
		)
	}
}

// FailureMessage maps a fraud detection error to the text shown on the failed entry
func FailureMessage(err error) string {
	var statusErr *port.StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP error: status %d", statusErr.StatusCode)
	case errors.Is(err, port.ErrMalformedResponse):
		return MsgInvalidResponse
	case errors.Is(err, port.ErrProcessingFailed):
		return MsgProcessingFailed
	default:
		return MsgNetworkError
	}
}
