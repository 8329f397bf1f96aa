package rod

import (
	"strings"
	"testing"
)

func TestVisibleText_RemovesScriptStyle(t *testing.T) {
	html := `
<body>
    <div id="main">Hello</div>
    <script>alert("hi")</script>
    <style>.x {}</style>
</body>`

	out := VisibleText(html)

	if strings.Contains(out, "alert") || strings.Contains(out, ".x") {
		t.Errorf("script/style content must be removed, output: %s", out)
	}
	if out != "Hello" {
		t.Errorf("expected only visible text, got %q", out)
	}
}

func TestVisibleText_RemovesComments(t *testing.T) {
	html := `<body><!-- comment --><div>Text</div></body>`

	out := VisibleText(html)

	if strings.Contains(out, "comment") {
		t.Errorf("HTML comments must be removed")
	}
}

func TestVisibleText_SkipsHiddenElements(t *testing.T) {
	html := `<body>
<div hidden>secret one</div>
<div style="display: none">secret two</div>
<div aria-hidden="true">secret three</div>
<p>shown</p>
</body>`

	out := VisibleText(html)

	if strings.Contains(out, "secret") {
		t.Errorf("hidden elements must be skipped, output: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("visible paragraph missing")
	}
}

func TestVisibleText_KeepsTableRows(t *testing.T) {
	html := `<body><table>
<tr><th>Course</th><th>Credits</th></tr>
<tr><td>Algorithms</td><td>6</td></tr>
<tr><td>Databases</td><td>5</td></tr>
</table></body>`

	out := VisibleText(html)
	lines := strings.Split(out, "\n")

	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), out)
	}
	if lines[1] != "Algorithms | 6" {
		t.Errorf("unexpected row rendering: %q", lines[1])
	}
}

func TestVisibleText_CollapsesWhitespace(t *testing.T) {
	html := "<body><p>  many    spaces\n\n here </p><p></p><p>next</p></body>"

	out := VisibleText(html)

	if out != "many spaces here\nnext" {
		t.Errorf("unexpected text: %q", out)
	}
}

func TestVisibleText_WithoutBody(t *testing.T) {
	out := VisibleText("just text")
	if out != "just text" {
		t.Errorf("unexpected text: %q", out)
	}
}
