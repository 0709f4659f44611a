package content

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Category is the declared media category of an uploaded file.
type Category string

const (
	CategoryCode     Category = "code"
	CategoryText     Category = "text"
	CategoryImage    Category = "image"
	CategoryPDF      Category = "pdf"
	CategoryDocument Category = "document"
	CategoryUnknown  Category = "unknown"
)

// File is the uniform representation of one uploaded file. Immutable after
// normalization; removal from the active set is the only lifecycle event.
type File struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MediaType string   `json:"media_type"`
	Category  Category `json:"category"`
	Size      int64    `json:"size"`
	Text      string   `json:"-"`      // decoded text, empty for binary payloads
	Handle    string   `json:"-"`      // data-URI handle for binary payloads
	Binary    bool     `json:"binary"` // true when Text carries no content
}

// Placeholder is the text stand-in for binary payloads in model prompts.
func (f *File) Placeholder() string {
	return fmt.Sprintf("[Binary content: %s (%s, %d bytes)]", f.Name, f.Category, f.Size)
}

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".cc": true, ".cxx": true,
	".hpp": true, ".rs": true, ".rb": true, ".php": true, ".swift": true, ".kt": true,
	".cs": true, ".sh": true, ".sql": true, ".html": true, ".htm": true, ".css": true,
	".xml": true, ".json": true, ".yaml": true, ".yml": true, ".toml": true,
}

var textExtensions = map[string]bool{
	".txt": true, ".log": true, ".csv": true, ".tsv": true,
}

var documentExtensions = map[string]bool{
	".docx": true, ".doc": true, ".rtf": true, ".odt": true, ".md": true,
}

// Classify maps a file name and declared media type onto a Category.
// Precedence: code extension, pdf, image, text, document, unknown.
// Extension checks run before media-type checks so that e.g. main.cpp is
// code no matter what type the browser declared.
func Classify(name, mediaType string) Category {
	ext := strings.ToLower(filepath.Ext(name))
	mt := strings.ToLower(mediaType)

	switch {
	case codeExtensions[ext]:
		return CategoryCode
	case ext == ".pdf" || strings.Contains(mt, "pdf"):
		return CategoryPDF
	case strings.HasPrefix(mt, "image/"):
		return CategoryImage
	case textExtensions[ext]:
		return CategoryText
	case documentExtensions[ext] || strings.Contains(mt, "text") || strings.Contains(mt, "document"):
		return CategoryDocument
	default:
		return CategoryUnknown
	}
}

// Converter turns raw bytes of one category into text or a binary handle.
type Converter interface {
	Convert(name string, data []byte) (text string, handle string, err error)
}

// Normalizer converts heterogeneous uploads into Files. Safe for
// concurrent use; converters hold no mutable state.
type Normalizer struct {
	converters    map[Category]Converter
	contentBudget int
}

func NewNormalizer(contentBudget int, maxImageBytes int64) *Normalizer {
	n := &Normalizer{
		converters:    make(map[Category]Converter),
		contentBudget: contentBudget,
	}
	utf8Conv := &utf8Converter{}
	n.Register(CategoryCode, utf8Conv)
	n.Register(CategoryText, utf8Conv)
	n.Register(CategoryUnknown, utf8Conv)
	n.Register(CategoryPDF, &pdfConverter{})
	n.Register(CategoryDocument, &documentConverter{})
	n.Register(CategoryImage, &imageConverter{maxBytes: maxImageBytes})
	return n
}

// Register installs the converter for a category, replacing any default.
func (n *Normalizer) Register(cat Category, c Converter) {
	n.converters[cat] = c
}

// Normalize converts one upload. A decode failure is terminal for the file
// and is returned to the caller, never swallowed.
func (n *Normalizer) Normalize(name, mediaType string, data []byte) (*File, error) {
	cat := Classify(name, mediaType)
	conv, ok := n.converters[cat]
	if !ok {
		return nil, fmt.Errorf("no converter registered for category %s", cat)
	}

	text, handle, err := conv.Convert(name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", name, err)
	}

	if len(text) > n.contentBudget {
		text = text[:n.contentBudget] + "\n... (content truncated) ..."
	}

	return &File{
		ID:        uuid.NewString(),
		Name:      name,
		MediaType: mediaType,
		Category:  cat,
		Size:      int64(len(data)),
		Text:      text,
		Handle:    handle,
		Binary:    text == "",
	}, nil
}

// Upload is one raw file handed to NormalizeAll.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// Result pairs an upload with its normalization outcome.
type Result struct {
	Name string
	File *File
	Err  error
}

// NormalizeAll converts every upload concurrently. Files are independent,
// so one file's failure never blocks the others; results come back in
// input order.
func (n *Normalizer) NormalizeAll(uploads []Upload) []Result {
	results := make([]Result, len(uploads))
	var wg sync.WaitGroup
	for i, up := range uploads {
		wg.Add(1)
		go func(i int, up Upload) {
			defer wg.Done()
			f, err := n.Normalize(up.Name, up.MediaType, up.Data)
			results[i] = Result{Name: up.Name, File: f, Err: err}
		}(i, up)
	}
	wg.Wait()
	return results
}

// utf8Converter decodes plain text, code, and anything unclassified.
type utf8Converter struct{}

func (c *utf8Converter) Convert(name string, data []byte) (string, string, error) {
	if !utf8.Valid(data) {
		return "", "", fmt.Errorf("%s is not valid UTF-8 text", name)
	}
	return string(data), "", nil
}
