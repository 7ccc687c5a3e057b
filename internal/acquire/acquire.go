// Package acquire obtains the raw text of a document ahead of field
// extraction. Two independent paths feed the extractor: the PDF text
// layer, and an optional OCR pass supplied by the caller. Their outputs
// are concatenated with a separator marker; duplicate fragments are
// tolerated downstream because extraction only needs token recall.
package acquire

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
)

// sourceSeparator joins the text-layer and OCR passes so extractors can
// still anchor on keywords near either fragment.
const sourceSeparator = "\n----\n"

// maxTextSize caps extracted text per document.
const maxTextSize = 10 * 1024 * 1024

// OCRFunc is the optical-character-recognition collaborator. It is
// external to this package; a nil function disables the second path.
type OCRFunc func(ctx context.Context, path string) (string, error)

// TextSource yields the raw text blob for one document, or an error when
// the text could not be obtained at all.
type TextSource interface {
	AcquireText(ctx context.Context, path string) (string, error)
}

// PDFSource reads the text layer with ledongthuc/pdf after a relaxed
// pdfcpu validation pass, then appends OCR output when configured.
type PDFSource struct {
	maxFileSize int64
	ocr         OCRFunc
	conf        *model.Configuration
	logger      zerolog.Logger
}

// NewPDFSource creates a source with the given file-size limit. ocr may
// be nil.
func NewPDFSource(maxFileSize int64, ocr OCRFunc, logger zerolog.Logger) *PDFSource {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFSource{
		maxFileSize: maxFileSize,
		ocr:         ocr,
		conf:        conf,
		logger:      logger,
	}
}

// AcquireText returns the concatenated text of both acquisition paths.
// It fails only when no path produced any text; a single path failing is
// logged and skipped.
func (s *PDFSource) AcquireText(ctx context.Context, path string) (string, error) {
	if err := s.validateFile(path); err != nil {
		return "", err
	}

	var parts []string

	layer, err := s.textLayer(path)
	if err != nil {
		s.logger.Debug().Err(err).Str("file", path).Msg("text layer unreadable")
	} else if strings.TrimSpace(layer) != "" {
		parts = append(parts, layer)
	}

	if s.ocr != nil {
		ocrText, err := s.ocr(ctx, path)
		if err != nil {
			s.logger.Debug().Err(err).Str("file", path).Msg("ocr pass failed")
		} else if strings.TrimSpace(ocrText) != "" {
			parts = append(parts, ocrText)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text could be acquired from %s", path)
	}
	return strings.Join(parts, sourceSeparator), nil
}

// validateFile checks the path points at a readable, size-bounded PDF.
func (s *PDFSource) validateFile(path string) error {
	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", path)
	}
	if fileInfo.Size() > s.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), s.maxFileSize)
	}
	if err := api.ValidateFile(path, s.conf); err != nil {
		return fmt.Errorf("not a valid PDF: %w", err)
	}
	return nil
}

// textLayer extracts the embedded text of every page. Pages that fail to
// decode are skipped so one broken page does not lose the document.
func (s *PDFSource) textLayer(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var builder strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if builder.Len()+len(content) > maxTextSize {
			remaining := maxTextSize - builder.Len()
			if remaining > 0 {
				builder.WriteString(content[:remaining])
			}
			break
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
