package services

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"alfredoptarigan/resume-analyzer/internal/logger"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeODT  = "application/vnd.oasis.opendocument.text"
	mimeRTF  = "text/rtf"
	mimeText = "text/plain"
	mimeHTML = "text/html"
)

const defaultPageTimeout = 10 * time.Second

type ExtractedDocument struct {
	Text        string
	ContentType string
	PageCount   int
}

type TextExtractor interface {
	Extract(data []byte, declaredName string) (*ExtractedDocument, error)
}

type textExtractor struct {
	log         *zap.Logger
	pageTimeout time.Duration
}

func NewTextExtractor(log *zap.Logger) TextExtractor {
	return &textExtractor{
		log:         logger.OrNop(log),
		pageTimeout: defaultPageTimeout,
	}
}

// Extract converts raw upload bytes into plain text. The format is sniffed
// from the content; declaredName is only used for logging.
func (x *textExtractor) Extract(data []byte, declaredName string) (*ExtractedDocument, error) {
	mtype := mimetype.Detect(data)
	log := x.log.With(zap.String("file", declaredName), zap.String("content_type", mtype.String()))

	var (
		doc *ExtractedDocument
		err error
	)
	switch {
	case mtype.Is(mimePDF):
		doc, err = x.extractPDF(data)
	case mtype.Is(mimeDOCX), mtype.Is(mimeODT), mtype.Is(mimeRTF):
		doc, err = extractOffice(data)
	case isPlainText(mtype):
		doc, err = extractPlainText(data, mtype.String())
	default:
		err = fmt.Errorf("unsupported content type %q", mtype.String())
	}
	if err != nil {
		log.Warn("text extraction failed", zap.Error(err))
		return nil, newError(KindUnreadable, StageStart, "document cannot be read", err)
	}

	doc.ContentType = mtype.String()
	log.Debug("text extracted", zap.Int("pages", doc.PageCount), zap.Int("chars", utf8.RuneCountInString(doc.Text)))

	return doc, nil
}

func (x *textExtractor) extractPDF(data []byte) (doc *ExtractedDocument, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := x.protectExtract(page)
		if err != nil {
			x.log.Warn("skipping unreadable pdf page", zap.Int("page", pageIndex), zap.Error(err))
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	return &ExtractedDocument{
		Text:      strings.TrimSpace(textBuilder.String()),
		PageCount: totalPage,
	}, nil
}

// protectExtract bounds the time spent on one page; some content streams
// make the parser loop for a very long time.
func (x *textExtractor) protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("page parser panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	select {
	case res := <-resChan:
		return res.content, res.err
	case <-time.After(x.pageTimeout):
		return "", errors.New("page extraction timed out")
	}
}

func extractOffice(data []byte) (*ExtractedDocument, error) {
	text, err := cat.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to extract document text: %w", err)
	}

	return &ExtractedDocument{Text: strings.TrimSpace(text), PageCount: 1}, nil
}

// isPlainText reports whether m is text/plain or one of its subtypes, such
// as CSV or JSON. HTML is left out: its markup is not resume text.
func isPlainText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mimeHTML) {
			return false
		}
		if m.Is(mimeText) {
			return true
		}
	}
	return false
}

// extractPlainText decodes data to UTF-8 using the sniffed charset. Text
// without a known charset that is not valid UTF-8 is read as Windows-1252.
func extractPlainText(data []byte, contentType string) (*ExtractedDocument, error) {
	text := string(data)

	if !utf8.Valid(data) {
		enc := encoding.Encoding(charmap.Windows1252)
		if _, params, err := mime.ParseMediaType(contentType); err == nil && params["charset"] != "" {
			if named, err := htmlindex.Get(params["charset"]); err == nil {
				enc = named
			}
		}

		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode text: %w", err)
		}
		text = string(decoded)
	}

	return &ExtractedDocument{Text: strings.TrimSpace(text), PageCount: 1}, nil
}
