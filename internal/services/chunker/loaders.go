package chunker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readUTF8(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8", path)
	}
	return data, nil
}

// -----------------------------------------------------------------------
// Plain text
// -----------------------------------------------------------------------

// TextLoader reads UTF-8 text files as a single section
type TextLoader struct{}

func NewTextLoader() *TextLoader { return &TextLoader{} }

var _ interfaces.DocumentLoader = (*TextLoader)(nil)

func (l *TextLoader) Extensions() []string { return []string{".txt"} }

func (l *TextLoader) Load(ctx context.Context, path string) ([]models.Passage, error) {
	data, err := readUTF8(path)
	if err != nil {
		return nil, err
	}
	return []models.Passage{{
		Text:     string(data),
		Metadata: map[string]string{models.MetadataTitle: filepath.Base(path)},
	}}, nil
}

// -----------------------------------------------------------------------
// PDF
// -----------------------------------------------------------------------

// PDFLoader validates the file with pdfcpu and extracts per-page text with ledongthuc/pdf
type PDFLoader struct {
	logger arbor.ILogger
}

func NewPDFLoader(logger arbor.ILogger) *PDFLoader {
	return &PDFLoader{logger: logger}
}

var _ interfaces.DocumentLoader = (*PDFLoader)(nil)

func (l *PDFLoader) Extensions() []string { return []string{".pdf"} }

// Load returns one section per page that has text
func (l *PDFLoader) Load(ctx context.Context, path string) ([]models.Passage, error) {
	// pdfcpu rejects corrupt files before the text extractor sees them
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF structure: %w", err)
	}
	expectedPages := pdfCtx.PageCount

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	if expectedPages > 0 && totalPages != expectedPages {
		l.logger.Debug().
			Str("path", path).
			Int("pdfcpu_pages", expectedPages).
			Int("reader_pages", totalPages).
			Msg("PDF page count mismatch")
	}

	sections := make([]models.Passage, 0, totalPages)
	title := filepath.Base(path)
	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			l.logger.Warn().
				Err(err).
				Str("path", path).
				Int("page", pageIndex).
				Msg("Failed to read PDF page, skipping")
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		sections = append(sections, models.Passage{
			Text: content,
			Metadata: map[string]string{
				models.MetadataPage:  strconv.Itoa(pageIndex),
				models.MetadataTitle: title,
			},
		})
	}

	return sections, nil
}

// -----------------------------------------------------------------------
// Markdown
// -----------------------------------------------------------------------

// MarkdownLoader parses Markdown with goldmark and keeps only the readable text
type MarkdownLoader struct {
	markdown goldmark.Markdown
}

func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{markdown: goldmark.New()}
}

var _ interfaces.DocumentLoader = (*MarkdownLoader)(nil)

func (l *MarkdownLoader) Extensions() []string { return []string{".md", ".markdown"} }

func (l *MarkdownLoader) Load(ctx context.Context, path string) ([]models.Passage, error) {
	data, err := readUTF8(path)
	if err != nil {
		return nil, err
	}

	plain, title := l.plainText(data)
	if title == "" {
		title = filepath.Base(path)
	}

	return []models.Passage{{
		Text:     plain,
		Metadata: map[string]string{models.MetadataTitle: title},
	}}, nil
}

// plainText walks the Markdown AST and returns the text plus the first heading
func (l *MarkdownLoader) plainText(source []byte) (string, string) {
	doc := l.markdown.Parser().Parse(text.NewReader(source))

	var buf strings.Builder
	var title strings.Builder
	inTitle := false
	titleDone := false

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Heading:
			if !titleDone {
				inTitle = entering
				if !entering {
					titleDone = true
				}
			}
		case *ast.Text:
			if entering {
				value := node.Segment.Value(source)
				buf.Write(value)
				if inTitle {
					title.Write(value)
				}
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
			return ast.WalkContinue, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					segment := lines.At(i)
					buf.Write(segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		}

		if !entering && n.Type() == ast.TypeBlock {
			buf.WriteString("\n")
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String()), strings.TrimSpace(title.String())
}

// -----------------------------------------------------------------------
// HTML
// -----------------------------------------------------------------------

// HTMLLoader converts HTML to Markdown and then to plain text
type HTMLLoader struct {
	converter *md.Converter
	markdown  *MarkdownLoader
}

func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{
		converter: md.NewConverter("", true, nil),
		markdown:  NewMarkdownLoader(),
	}
}

var _ interfaces.DocumentLoader = (*HTMLLoader)(nil)

func (l *HTMLLoader) Extensions() []string { return []string{".html", ".htm"} }

func (l *HTMLLoader) Load(ctx context.Context, path string) ([]models.Passage, error) {
	data, err := readUTF8(path)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	bodyHTML, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML body: %w", err)
	}

	markdown, err := l.converter.ConvertString(bodyHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	plain, heading := l.markdown.plainText([]byte(markdown))
	if title == "" {
		title = heading
	}
	if title == "" {
		title = filepath.Base(path)
	}

	return []models.Passage{{
		Text:     plain,
		Metadata: map[string]string{models.MetadataTitle: title},
	}}, nil
}
