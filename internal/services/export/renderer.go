package export

import (
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// renderer writes a goldmark AST into the current fpdf page
type renderer struct {
	pdf       *fpdf.Fpdf
	tr        func(string) string
	source    []byte
	bold      bool
	italic    bool
	listLevel int
}

func newRenderer(pdf *fpdf.Fpdf, tr func(string) string, source []byte) *renderer {
	return &renderer{pdf: pdf, tr: tr, source: source}
}

func (r *renderer) render(node ast.Node) error {
	r.updateFont()
	return ast.Walk(node, r.walk)
}

func (r *renderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(fontFamily, style, bodySize)
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(2)
			r.pdf.SetFont(fontFamily, "B", bodySize+max(0, 4-float64(node.Level)))
		} else {
			r.pdf.Ln(lineHeight + 1)
			r.updateFont()
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(lineHeight + 1)
		}
	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.HardLineBreak() || node.SoftLineBreak() {
				r.pdf.Ln(lineHeight)
			}
		}
	case *ast.String:
		if entering {
			r.write(string(node.Value))
		}
	case *ast.AutoLink:
		if entering {
			r.write(string(node.URL(r.source)))
		}
		return ast.WalkSkipChildren, nil
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case *ast.CodeSpan:
		if entering {
			r.pdf.SetFont("Courier", "", bodySize)
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					r.write(string(t.Segment.Value(r.source)))
				}
			}
			r.updateFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			r.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			r.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			if r.pdf.GetX() > r.leftMargin()+0.1 {
				r.pdf.Ln(lineHeight)
			}
			r.pdf.SetX(r.leftMargin() + float64(r.listLevel)*5)
			r.write("- ")
		}
	case *ast.TextBlock:
		if !entering && node.NextSibling() == nil {
			r.pdf.Ln(lineHeight)
		}
	case *ast.Blockquote:
		r.italic = entering
		r.updateFont()
	case *ast.ThematicBreak:
		if entering {
			left, _, right, _ := r.pdf.GetMargins()
			width, _ := r.pdf.GetPageSize()
			r.pdf.Ln(2)
			r.pdf.Line(left, r.pdf.GetY(), width-right, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

func (r *renderer) write(s string) {
	r.pdf.Write(lineHeight, r.tr(s))
}

func (r *renderer) leftMargin() float64 {
	left, _, _, _ := r.pdf.GetMargins()
	return left
}

func (r *renderer) codeBlock(lines *text.Segments) {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		b.Write(segment.Value(r.source))
	}

	r.pdf.Ln(1)
	r.pdf.SetFont("Courier", "", bodySize-1)
	r.pdf.SetFillColor(245, 245, 245)
	r.pdf.MultiCell(0, lineHeight-0.5, r.tr(strings.TrimRight(b.String(), "\n")), "", "L", true)
	r.pdf.SetFillColor(255, 255, 255)
	r.updateFont()
	r.pdf.Ln(2)
}
