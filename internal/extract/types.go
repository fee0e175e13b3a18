// AngelaMos | 2026
// types.go

package extract

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	TypePDF      = "pdf"
	TypeDOC      = "doc"
	TypeDOCX     = "docx"
	TypeTXT      = "txt"
	TypeXLS      = "xls"
	TypeXLSX     = "xlsx"
	TypePPT      = "ppt"
	TypePPTX     = "pptx"
	TypeDocument = "document"
)

var mimeTypes = map[string]string{
	"application/pdf":          TypePDF,
	"application/msword":       TypeDOC,
	"text/plain":               TypeTXT,
	"application/vnd.ms-excel": TypeXLS,

	"application/vnd.ms-powerpoint": TypePPT,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   TypeDOCX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         TypeXLSX,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": TypePPTX,
}

// FileType maps a declared MIME type onto a stored document type.
// Unrecognised types become TypeDocument.
func FileType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = mimeType
	}

	if t, ok := mimeTypes[mediaType]; ok {
		return t
	}
	return TypeDocument
}

// Resolve trusts the declared MIME type when it is recognised and
// otherwise sniffs the content.
func Resolve(declared string, data []byte) string {
	if t := FileType(declared); t != TypeDocument {
		return t
	}

	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if t := FileType(m.String()); t != TypeDocument {
			return t
		}
	}

	return TypeDocument
}

// ContentType picks the download MIME type from a file name extension.
func ContentType(fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	for mediaType, t := range mimeTypes {
		if t == ext {
			return mediaType
		}
	}
	return "application/octet-stream"
}
