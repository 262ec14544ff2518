package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/garyjia/fraudguard/internal/domain/workflow"
)

// ErrFileNotFound is returned when no upload entry has the given ID
var ErrFileNotFound = errors.New("upload entry not found")

type boardEntry struct {
	file    *entity.UploadedFile
	machine workflow.StateMachine
}

type batchCounters struct {
	total     int
	completed int
	failed    int
}

func (c *batchCounters) progress(batchID string) entity.BatchProgress {
	resolved := c.completed + c.failed
	return entity.BatchProgress{
		BatchID:   batchID,
		Total:     c.total,
		Resolved:  resolved,
		Completed: c.completed,
		Failed:    c.failed,
		Progress:  float64(resolved) / float64(c.total) * 100,
		Done:      resolved == c.total,
	}
}

// UploadBoard holds every upload entry of the process in submission order, plus
// per-batch progress. Readers get copies; entries only move forward through the
// file lifecycle.
type UploadBoard struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*boardEntry
	batches map[string]*batchCounters
	latest  string
	now     func() time.Time
}

// NewUploadBoard creates an empty board
func NewUploadBoard() *UploadBoard {
	return &UploadBoard{
		entries: make(map[string]*boardEntry),
		batches: make(map[string]*batchCounters),
		now:     time.Now,
	}
}

// add registers a batch and its processing entries. The batch becomes the latest one.
func (b *UploadBoard) add(batch *entity.Batch, files []*entity.UploadedFile) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, f := range files {
		b.order = append(b.order, f.ID)
		b.entries[f.ID] = &boardEntry{
			file:    f.Clone(),
			machine: workflow.NewFileLifecycle(),
		}
	}
	b.batches[batch.ID] = &batchCounters{total: len(files)}
	b.latest = batch.ID
}

// complete moves a processing entry to completed with the service verdict
func (b *UploadBoard) complete(fileID string, data *entity.ExtractedData) (*entity.UploadedFile, error) {
	return b.resolve(fileID, workflow.TriggerComplete, func(f *entity.UploadedFile) {
		cp := *data
		f.Status = entity.FileStatusCompleted
		f.FraudStatus = cp.FraudStatus
		f.ExtractedData = &cp
	})
}

// fail moves a processing entry to failed with a human-readable message
func (b *UploadBoard) fail(fileID, message string) (*entity.UploadedFile, error) {
	return b.resolve(fileID, workflow.TriggerFail, func(f *entity.UploadedFile) {
		f.Status = entity.FileStatusFailed
		f.Error = message
	})
}

func (b *UploadBoard) resolve(fileID string, trigger workflow.Trigger, apply func(*entity.UploadedFile)) (*entity.UploadedFile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	if err := e.machine.Fire(trigger); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", fileID, err)
	}

	apply(e.file)
	resolvedAt := b.now()
	e.file.ResolvedAt = &resolvedAt

	if c, ok := b.batches[e.file.BatchID]; ok {
		if trigger == workflow.TriggerComplete {
			c.completed++
		} else {
			c.failed++
		}
	}

	return e.file.Clone(), nil
}

// Files returns copies of all entries, oldest first
func (b *UploadBoard) Files() []*entity.UploadedFile {
	b.mu.RLock()
	defer b.mu.RUnlock()

	files := make([]*entity.UploadedFile, 0, len(b.order))
	for _, id := range b.order {
		files = append(files, b.entries[id].file.Clone())
	}
	return files
}

// File returns a copy of one entry
func (b *UploadBoard) File(id string) (*entity.UploadedFile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return e.file.Clone(), nil
}

// Progress returns the progress of the most recent batch, or 0 before any batch
func (b *UploadBoard) Progress() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.batches[b.latest]
	if !ok {
		return 0
	}
	return c.progress(b.latest).Progress
}

// BatchProgress returns the progress of one batch
func (b *UploadBoard) BatchProgress(batchID string) (entity.BatchProgress, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.batches[batchID]
	if !ok {
		return entity.BatchProgress{}, false
	}
	return c.progress(batchID), true
}

// Processing reports whether any entry is still waiting for its verdict
func (b *UploadBoard) Processing() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.batches {
		if c.completed+c.failed < c.total {
			return true
		}
	}
	return false
}
