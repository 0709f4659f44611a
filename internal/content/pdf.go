package content

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfConverter extracts text page by page, joining pages with boundary
// markers so step prompts can reference page positions.
type pdfConverter struct{}

func (c *pdfConverter) Convert(name string, data []byte) (string, string, error) {
	text, err := extractPDFText(data)
	if err != nil {
		return "", "", fmt.Errorf("pdf parse error: %w", err)
	}
	return text, "", nil
}

func extractPDFText(data []byte) (text string, err error) {
	// The pdf library panics on some malformed inputs; a corrupt upload
	// must surface as a rejected file, not kill the process.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unreadable pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %v", i, err)
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n", i)
		sb.WriteString(strings.TrimSpace(content))
		sb.WriteByte('\n')
	}

	return strings.TrimSpace(sb.String()), nil
}
