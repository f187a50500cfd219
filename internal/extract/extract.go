// Package extract turns raw uploaded document bytes into plain text.
// Dispatch is by filename extension; the decoders themselves are external
// libraries. Output is never trimmed or length-gated here.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat marks files whose extension is not in the
	// supported set.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtractionFailed wraps decoder errors; the original cause is kept
	// in the message.
	ErrExtractionFailed = errors.New("text extraction failed")
)

var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".doc":  {},
	".txt":  {},
}

// Supported reports whether the file name carries an extension the extractor
// can handle. The check is case-insensitive.
func Supported(fileName string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// Text extracts plain text from the document bytes, dispatching on the file
// extension. Formatting and embedded objects are discarded.
func Text(data []byte, fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	switch ext {
	case ".pdf":
		text, err := pdfText(data)
		if err != nil {
			return "", fmt.Errorf("%w: pdf %q: %v", ErrExtractionFailed, fileName, err)
		}
		return text, nil
	case ".docx", ".doc":
		text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("%w: docx %q: %v", ErrExtractionFailed, fileName, err)
		}
		return text, nil
	case ".txt":
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q (supported: pdf, docx, doc, txt)", ErrUnsupportedFormat, ext)
	}
}

// pdfText walks the document pages in order and concatenates their text. A
// single corrupt page must never fail whole-document extraction, so each
// page is decoded best-effort with a raw-run fallback.
func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text := pageText(page)
		if text == "" {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(text)
	}

	return builder.String(), nil
}

// pageText decodes one page, falling back to the raw text runs when the
// plain-text decoder chokes on malformed content streams.
func pageText(page pdf.Page) (text string) {
	// The underlying reader panics on some malformed pages; treat that the
	// same as a decode failure and keep whatever the fallback produced.
	defer func() {
		if r := recover(); r != nil {
			text = rawRuns(page)
		}
	}()

	text, err := page.GetPlainText(nil)
	if err != nil {
		return rawRuns(page)
	}

	return text
}

func rawRuns(page pdf.Page) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	var builder strings.Builder
	for _, run := range page.Content().Text {
		builder.WriteString(run.S)
	}

	return builder.String()
}
