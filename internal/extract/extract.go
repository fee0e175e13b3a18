// AngelaMos | 2026
// extract.go

// Package extract turns stored document bytes into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
)

type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// TextSource is what callers depend on; both Registry and Cache satisfy it.
type TextSource interface {
	Text(ctx context.Context, fileType string, data []byte) (string, error)
}

type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

type Registry struct {
	byType   map[string]Extractor
	fallback Extractor
}

// NewRegistry wires PDF and WordprocessingML extraction. Every other type
// is decoded as UTF-8 text.
func NewRegistry() *Registry {
	return &Registry{
		byType: map[string]Extractor{
			TypePDF:  ExtractorFunc(PDF),
			TypeDOC:  ExtractorFunc(DOCX),
			TypeDOCX: ExtractorFunc(DOCX),
			TypeTXT:  ExtractorFunc(Plain),
		},
		fallback: ExtractorFunc(Plain),
	}
}

func (r *Registry) Register(fileType string, e Extractor) {
	r.byType[fileType] = e
}

func (r *Registry) Text(
	ctx context.Context,
	fileType string,
	data []byte,
) (string, error) {
	e, ok := r.byType[fileType]
	if !ok {
		e = r.fallback
	}

	text, err := e.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", fileType, err)
	}
	return text, nil
}

func Plain(_ context.Context, data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

func PDF(_ context.Context, data []byte) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed pdf: %v: %w", p, core.ErrUnsupported)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w: %w", err, core.ErrUnsupported)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return buf.String(), nil
}

const docxBody = "word/document.xml"

// DOCX collects the text runs of the main document part, one line per
// paragraph.
func DOCX(_ context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w: %w", err, core.ErrUnsupported)
	}

	f, err := zr.Open(docxBody)
	if err != nil {
		return "", fmt.Errorf("open %s: %w: %w", docxBody, err, core.ErrUnsupported)
	}
	defer f.Close() //nolint:errcheck // read-only archive member

	return wordText(f)
}

func wordText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out    strings.Builder
		inText bool
		para   bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			case "p":
				if para {
					out.WriteByte('\n')
				}
				para = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return out.String(), nil
}
