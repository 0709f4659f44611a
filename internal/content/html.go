package content

import (
	"bytes"
	"net/url"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// extractHTMLText runs readability over an uploaded HTML document and
// sanitizes the result down to clean text. When readability cannot find an
// article the raw markup is stripped instead, so the file is still usable.
func extractHTMLText(name string, data []byte) (string, error) {
	base, _ := url.Parse("file:///" + url.PathEscape(name))
	policy := bluemonday.StrictPolicy()

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return policy.Sanitize(string(data)), nil
	}

	text := policy.Sanitize(article.TextContent)
	if article.Title != "" {
		text = "TITLE: " + article.Title + "\n\n" + text
	}
	return text, nil
}
