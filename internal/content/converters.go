package content

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// documentConverter extracts plain text from document-category uploads.
// DOCX is unpacked directly; HTML payloads go through readability; anything
// else must already be UTF-8 text.
type documentConverter struct{}

func (c *documentConverter) Convert(name string, data []byte) (string, string, error) {
	ext := strings.ToLower(filepath.Ext(name))

	if ext == ".docx" {
		text, err := extractDocxText(data)
		if err != nil {
			return "", "", fmt.Errorf("docx parse error: %w", err)
		}
		return text, "", nil
	}

	if looksLikeHTML(data) {
		text, err := extractHTMLText(name, data)
		if err != nil {
			return "", "", fmt.Errorf("html parse error: %w", err)
		}
		return text, "", nil
	}

	if !utf8.Valid(data) {
		return "", "", fmt.Errorf("%s is not valid UTF-8 text", name)
	}
	return string(data), "", nil
}

func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<!doctype html")) || bytes.Contains(lower, []byte("<html"))
}

// imageConverter produces a size-bounded data-URI handle. The consuming
// model is text-only, so the handle exists for the UI and export layers;
// prompts see only the placeholder.
type imageConverter struct {
	maxBytes int64
}

func (c *imageConverter) Convert(name string, data []byte) (string, string, error) {
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		// Too large to inline. Keep the file with a bare marker handle.
		return "", fmt.Sprintf("image:%s", name), nil
	}
	mime := mimeForImage(name)
	handle := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return "", handle, nil
}

func mimeForImage(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}
