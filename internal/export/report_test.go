package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

func readZipPart(t *testing.T, body []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("artifact is not a zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	t.Fatalf("archive has no %s", name)
	return ""
}

func TestBuildReportArtifact(t *testing.T) {
	content := "# Title\nIntro line\n## Section\nbody with <tags> & ampersands"
	art, err := BuildReportArtifact(content)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(art.Filename, "scribe-") || !strings.HasSuffix(art.Filename, ".docx") {
		t.Errorf("filename = %q", art.Filename)
	}

	doc := readZipPart(t, art.Body, "word/document.xml")
	if !strings.Contains(doc, `w:val="Heading1"`) {
		t.Error("level-1 heading style missing")
	}
	if !strings.Contains(doc, `w:val="Heading2"`) {
		t.Error("level-2 heading style missing")
	}
	if strings.Contains(doc, "# Title") {
		t.Error("heading marker leaked into document text")
	}
	if !strings.Contains(doc, "Intro line") {
		t.Error("plain paragraph missing")
	}
	if !strings.Contains(doc, "&lt;tags&gt; &amp; ampersands") {
		t.Errorf("special characters not escaped:\n%s", doc)
	}

	types := readZipPart(t, art.Body, "[Content_Types].xml")
	if !strings.Contains(types, "wordprocessingml.document.main+xml") {
		t.Error("content types part malformed")
	}
	rels := readZipPart(t, art.Body, "_rels/.rels")
	if !strings.Contains(rels, "word/document.xml") {
		t.Error("package relationships malformed")
	}
}

func TestHeadingStyle(t *testing.T) {
	tests := []struct {
		line      string
		wantText  string
		wantStyle string
	}{
		{"# Title", "Title", "Heading1"},
		{"## Section", "Section", "Heading2"},
		{"### Sub", "Sub", "Heading3"},
		{"#### too deep", "#### too deep", ""},
		{"plain line", "plain line", ""},
		{"  # indented heading", "indented heading", "Heading1"},
		{"#no space", "no space", "Heading1"},
	}
	for _, tt := range tests {
		text, style := headingStyle(tt.line)
		if text != tt.wantText || style != tt.wantStyle {
			t.Errorf("headingStyle(%q) = (%q, %q), want (%q, %q)", tt.line, text, style, tt.wantText, tt.wantStyle)
		}
	}
}
