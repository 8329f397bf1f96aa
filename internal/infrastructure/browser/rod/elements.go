package rod

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-rod/rod"

	"scout-agent/internal/domain/entity"
)

const indexAttr = "data-scout-index"

// indexScript tags visible interactive elements with a 1-based index and describes them.
const indexScript = `(max) => {
	const sel = 'a[href], button, input:not([type=hidden]), textarea, select, summary, ' +
		'[role=button], [role=link], [role=tab], [role=menuitem], [role=checkbox], [onclick]';
	document.querySelectorAll('[` + indexAttr + `]').forEach(e => e.removeAttribute('` + indexAttr + `'));
	const out = [];
	let i = 1;
	for (const el of document.querySelectorAll(sel)) {
		if (out.length >= max) break;
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		if (r.width === 0 || r.height === 0 || st.visibility === 'hidden' || st.display === 'none') continue;
		el.setAttribute('` + indexAttr + `', String(i));
		out.push({
			index: i,
			tag: el.tagName.toLowerCase(),
			type: el.getAttribute('type') || '',
			text: (el.innerText || el.value || '').trim().slice(0, 200),
			aria: el.getAttribute('aria-label') || '',
			placeholder: el.getAttribute('placeholder') || '',
			title: el.getAttribute('title') || '',
			href: el.getAttribute('href') || ''
		});
		i++;
	}
	return out;
}`

type rawElement struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Aria        string `json:"aria"`
	Placeholder string `json:"placeholder"`
	Title       string `json:"title"`
	Href        string `json:"href"`
}

const maxLabelLen = 120

func (r rawElement) element() entity.Element {
	kind := r.Tag
	if r.Tag == "input" && r.Type != "" {
		kind = "input type=" + r.Type
	}

	label := firstNonEmpty(r.Text, r.Aria, r.Placeholder, r.Title)
	label = strings.Join(strings.Fields(label), " ")
	if len(label) > maxLabelLen {
		label = label[:maxLabelLen] + "..."
	}
	if r.Tag == "a" && r.Href != "" && !strings.HasPrefix(r.Href, "javascript:") {
		if label == "" {
			label = r.Href
		} else {
			label += " -> " + r.Href
		}
	}
	return entity.Element{Index: r.Index, Kind: kind, Label: label}
}

func parseElements(data string) ([]entity.Element, error) {
	var raw []rawElement
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	out := make([]entity.Element, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.element())
	}
	return out, nil
}

func indexElements(page *rod.Page, limit int) ([]entity.Element, error) {
	res, err := page.Eval(indexScript, limit)
	if err != nil {
		return nil, fmt.Errorf("index elements: %w", err)
	}
	return parseElements(res.Value.JSON("", ""))
}

// indexed finds the element tagged by the last snapshot.
func indexed(page *rod.Page, index int) (*rod.Element, error) {
	els, err := page.Elements(fmt.Sprintf(`[%s="%d"]`, indexAttr, index))
	if err != nil {
		return nil, fmt.Errorf("lookup element %d: %w", index, err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("element with index %d does not exist", index)
	}
	return els.First(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
