package rod

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// articleShare is how much of the visible text a readability article must keep
// to be preferred. Listing pages lose their rows to readability and fall back.
const articleShare = 0.5

var strict = bluemonday.StrictPolicy()

// Readable returns the text of a page for the reasoner, capped at maxLen bytes.
func Readable(rawHTML, pageURL string, maxLen int) string {
	visible := VisibleText(rawHTML)

	text := visible
	if article := articleText(rawHTML, pageURL); len(article) >= int(float64(len(visible))*articleShare) && article != "" {
		text = article
	}

	text = strict.Sanitize(text)
	text = collapseLines(strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&#34;", `"`, "&#39;", "'").Replace(text))
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen] + "\n... (content truncated) ..."
	}
	return text
}

func articleText(rawHTML, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "http", Host: "localhost"}
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		return ""
	}
	return VisibleText(article.Content)
}
