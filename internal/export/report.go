package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ReportArtifact is a downloadable document built from report-like prose.
type ReportArtifact struct {
	Filename string
	Body     []byte
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// BuildReportArtifact converts literal text into a minimal DOCX: lines with
// one to three leading '#' markers become heading levels 1-3 (markers
// stripped), every other line a plain paragraph.
func BuildReportArtifact(content string) (ReportArtifact, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := map[string]string{
		"[Content_Types].xml": contentTypesXML,
		"_rels/.rels":         relsXML,
		"word/document.xml":   reportDocumentXML(content),
	}
	// Deterministic order keeps the archive layout stable.
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml"} {
		w, err := zw.Create(name)
		if err != nil {
			return ReportArtifact{}, fmt.Errorf("failed to build document: %v", err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			return ReportArtifact{}, fmt.Errorf("failed to build document: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		return ReportArtifact{}, fmt.Errorf("failed to build document: %v", err)
	}

	return ReportArtifact{
		Filename: "scribe-" + uuid.NewString() + ".docx",
		Body:     buf.Bytes(),
	}, nil
}

func reportDocumentXML(content string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	for _, line := range strings.Split(content, "\n") {
		text, style := headingStyle(line)
		sb.WriteString("<w:p>")
		if style != "" {
			fmt.Fprintf(&sb, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
		}
		fmt.Fprintf(&sb, `<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, escapeXML(text))
		sb.WriteString("</w:p>")
	}

	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

// headingStyle strips one to three leading '#' markers and returns the
// matching Word heading style, or the line unchanged with no style.
func headingStyle(line string) (string, string) {
	trimmed := strings.TrimSpace(line)
	for level := 3; level >= 1; level-- {
		marker := strings.Repeat("#", level)
		if strings.HasPrefix(trimmed, marker) && !strings.HasPrefix(trimmed, marker+"#") {
			return strings.TrimSpace(trimmed[level:]), fmt.Sprintf("Heading%d", level)
		}
	}
	return line, ""
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
