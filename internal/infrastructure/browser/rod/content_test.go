package rod

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func catalogPage(rows int) string {
	var sb strings.Builder
	sb.WriteString(`<html><head><title>Catalog</title></head><body><nav><a href="/">Home</a></nav><table>`)
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "<tr><td>Course %d</td><td>%d credits</td></tr>", i, i%6+1)
	}
	sb.WriteString(`</table><script>track()</script></body></html>`)
	return sb.String()
}

func TestReadable_ListingPageKeepsRows(t *testing.T) {
	out := Readable(catalogPage(40), "https://u.edu/catalog", 0)

	assert.Contains(t, out, "Course 0 | 1 credits")
	assert.Contains(t, out, "Course 39")
	assert.NotContains(t, out, "track()")
}

func TestReadable_StripsMarkup(t *testing.T) {
	out := Readable(`<body><p>Fish &amp; chips <b>daily</b></p><p>&lt;tag&gt; text</p></body>`, "", 0)

	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "Fish & chips daily")
}

func TestReadable_Truncates(t *testing.T) {
	out := Readable(catalogPage(200), "https://u.edu/catalog", 100)

	assert.Contains(t, out, "Course 0")
	assert.Contains(t, out, "(content truncated)")
	assert.Less(t, len(out), 200)
}

func TestReadable_Empty(t *testing.T) {
	assert.Empty(t, Readable(`<body><script>x()</script></body>`, "https://u.edu", 0))
}
