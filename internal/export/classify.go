package export

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// CodeBlock is the first fenced code block found in a step's output.
type CodeBlock struct {
	Language string
	Source   string
}

var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+\\.-]*)\\s*\\n(.*?)\\n```")

// DetectCodeBlock extracts the first fenced code block, with its optional
// language tag, from a completed step's final content.
func DetectCodeBlock(content string) (CodeBlock, bool) {
	m := fenceRe.FindStringSubmatch(content)
	if m == nil {
		return CodeBlock{}, false
	}
	return CodeBlock{Language: strings.ToLower(m[1]), Source: m[2]}, true
}

// reportHints are step-description words that suggest document intent.
var reportHints = []string{"report", "document", "write", "summar", "solution", "explain"}

// reportLengthThreshold is the content size past which long prose counts as
// a report even without a matching description.
const reportLengthThreshold = 1500

// IsReport classifies a completed step's output as report-like prose. A
// detected code block always suppresses report classification. Heuristic
// and best-effort: a UI convenience, nothing in the workflow depends on it.
func IsReport(description, content string) bool {
	if _, ok := DetectCodeBlock(content); ok {
		return false
	}
	desc := strings.ToLower(description)
	for _, hint := range reportHints {
		if strings.Contains(desc, hint) {
			return true
		}
	}
	return len(content) > reportLengthThreshold
}

var languageExtensions = map[string]string{
	"go":         ".go",
	"python":     ".py",
	"py":         ".py",
	"javascript": ".js",
	"js":         ".js",
	"typescript": ".ts",
	"ts":         ".ts",
	"java":       ".java",
	"c":          ".c",
	"cpp":        ".cpp",
	"c++":        ".cpp",
	"csharp":     ".cs",
	"rust":       ".rs",
	"ruby":       ".rb",
	"php":        ".php",
	"swift":      ".swift",
	"kotlin":     ".kt",
	"sh":         ".sh",
	"bash":       ".sh",
	"sql":        ".sql",
	"html":       ".html",
	"css":        ".css",
	"json":       ".json",
	"yaml":       ".yaml",
	"xml":        ".xml",
}

// ExtensionFor maps a fence language tag to a file extension, defaulting
// to .txt for unmapped or missing tags.
func ExtensionFor(language string) string {
	if ext, ok := languageExtensions[strings.ToLower(language)]; ok {
		return ext
	}
	return ".txt"
}

// CodeArtifact names and packages a code block for download. The payload
// is the inner fence text, verbatim.
type CodeArtifact struct {
	Filename string
	Body     []byte
}

func BuildCodeArtifact(block CodeBlock) CodeArtifact {
	return CodeArtifact{
		Filename: "scribe-" + uuid.NewString() + ExtensionFor(block.Language),
		Body:     []byte(block.Source),
	}
}
