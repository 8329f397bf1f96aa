package rod

import (
	"strings"

	"golang.org/x/net/html"
)

var dropTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "svg": true, "iframe": true,
	"link": true, "meta": true, "head": true, "template": true, "canvas": true,
}

// blockTags end a line of visible text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "section": true, "article": true, "table": true, "ul": true,
	"ol": true, "dl": true, "dt": true, "dd": true, "header": true, "footer": true, "blockquote": true,
	"pre": true, "hr": true, "form": true,
}

var lineBreaks = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// VisibleText renders the body of an HTML document as plain text, one block per line.
// Table cells are separated by " | " so row structure survives.
func VisibleText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	root := findBody(doc)
	if root == nil {
		root = doc
	}

	var sb strings.Builder
	walkText(root, &sb)
	return collapseLines(sb.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func walkText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		sb.WriteString(lineBreaks.Replace(n.Data))
		return
	case html.ElementNode:
		if dropTags[n.Data] || hidden(n) {
			return
		}
		if n.Data == "td" || n.Data == "th" {
			sb.WriteString(" | ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}

	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteString("\n")
	}
}

func hidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if a.Val == "true" {
				return true
			}
		case "style":
			v := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(v, "display:none") || strings.Contains(v, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

// collapseLines squeezes whitespace inside lines and drops empty ones.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		line = strings.Trim(line, "| ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
