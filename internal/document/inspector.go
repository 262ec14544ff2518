package document

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/garyjia/fraudguard/internal/domain/entity"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

const genericMediaType = "application/octet-stream"

// Inspector detects the media type and page count of incoming claim documents
type Inspector struct {
	logger *zap.Logger
}

// NewInspector creates a new document inspector
func NewInspector(logger *zap.Logger) *Inspector {
	return &Inspector{logger: logger}
}

// Inspect builds a Document from raw content. The media type is sniffed from the
// content and falls back to the file extension when sniffing is inconclusive.
// Unsupported types are not rejected here; the orchestrator does that per batch.
func (i *Inspector) Inspect(name string, content []byte) entity.Document {
	doc := entity.Document{
		Name:      name,
		Content:   content,
		MediaType: detectMediaType(name, content),
	}

	switch {
	case doc.MediaType == entity.MediaTypePDF:
		doc.Pages = i.pageCount(name, content)
	case entity.IsSupportedMediaType(doc.MediaType):
		doc.Pages = 1
	}

	i.logger.Debug("Document inspected",
		zap.String("file_name", name),
		zap.String("media_type", doc.MediaType),
		zap.Int("pages", doc.Pages),
		zap.Int64("size", doc.Size()))

	return doc
}

// InspectFile reads a document from disk and inspects it
func (i *Inspector) InspectFile(path string) (entity.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return entity.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return i.Inspect(filepath.Base(path), content), nil
}

// pageCount returns 0 when the PDF cannot be parsed locally; the remote service decides validity.
func (i *Inspector) pageCount(name string, content []byte) int {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		i.logger.Warn("Failed to open PDF for page count",
			zap.String("file_name", name),
			zap.Error(err))
		return 0
	}
	defer doc.Close()

	return doc.NumPage()
}

func detectMediaType(name string, content []byte) string {
	if len(content) > 0 {
		if mt := mimetype.Detect(content); mt != nil && !mt.Is(genericMediaType) {
			return mt.String()
		}
	}

	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt
	}
	return genericMediaType
}
