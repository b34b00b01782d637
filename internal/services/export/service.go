// Package export renders the chat log as a PDF transcript.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const (
	fontFamily = "Arial"
	bodySize   = 10.0
	lineHeight = 5.0
)

// Service renders chat transcripts
type Service struct {
	logger arbor.ILogger
	md     goldmark.Markdown
}

// NewService creates an export service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
		md:     goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify)),
	}
}

// ChatLogPDF renders turns in chronological order. Assistant answers are
// rendered as Markdown; user turns as plain text.
func (s *Service) ChatLogPDF(turns []models.ChatTurn, persona models.Persona) ([]byte, error) {
	aiName := persona.AIName
	if aiName == "" {
		aiName = "Assistant"
	}
	userName := persona.UserName
	if userName == "" {
		userName = "User"
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Conversation with %s", aiName), true)
	doc.SetCreator("pal", true)
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 15)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont(fontFamily, "I", 8)
		doc.SetTextColor(128, 128, 128)
		doc.CellFormat(0, 5, fmt.Sprintf("Page %d", doc.PageNo()), "", 0, "C", false, 0, "")
		doc.SetTextColor(0, 0, 0)
	})

	doc.AddPage()
	doc.SetFont(fontFamily, "B", 16)
	doc.CellFormat(0, 10, tr(fmt.Sprintf("Conversation with %s", aiName)), "", 1, "L", false, 0, "")
	doc.SetFont(fontFamily, "", 9)
	doc.SetTextColor(100, 100, 100)
	doc.CellFormat(0, 5, fmt.Sprintf("Exported %s, %d messages", time.Now().Format("2006-01-02 15:04"), len(turns)), "", 1, "L", false, 0, "")
	doc.SetTextColor(0, 0, 0)
	doc.Ln(4)

	if len(turns) == 0 {
		doc.SetFont(fontFamily, "I", bodySize)
		doc.Write(lineHeight, "No messages yet.")
	}

	for _, turn := range turns {
		speaker := userName
		if turn.Role == models.RoleAssistant {
			speaker = aiName
		}

		doc.SetFont(fontFamily, "B", bodySize)
		if turn.Role == models.RoleAssistant {
			doc.SetTextColor(30, 90, 160)
		}
		heading := speaker
		if ts := formatTimestamp(turn.Timestamp); ts != "" {
			heading += "  " + ts
		}
		doc.CellFormat(0, 6, tr(heading), "", 1, "L", false, 0, "")
		doc.SetTextColor(0, 0, 0)

		if turn.Role == models.RoleAssistant {
			r := newRenderer(doc, tr, []byte(turn.Content))
			if err := r.render(s.md.Parser().Parse(text.NewReader(r.source))); err != nil {
				return nil, fmt.Errorf("failed to render message: %w", err)
			}
		} else {
			doc.SetFont(fontFamily, "", bodySize)
			doc.MultiCell(0, lineHeight, tr(turn.Content), "", "L", false)
		}
		doc.Ln(3)
	}

	if err := doc.Error(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate chat log PDF")
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write chat log PDF")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().
		Int("turns", len(turns)).
		Int("pdf_size", buf.Len()).
		Msg("Chat log PDF generated")
	return buf.Bytes(), nil
}

// formatTimestamp shortens an ISO-8601 turn timestamp, returning it unchanged if unparseable
func formatTimestamp(ts string) string {
	for _, layout := range []string{"2006-01-02T15:04:05.999999", time.RFC3339Nano} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format("2006-01-02 15:04")
		}
	}
	return ts
}
