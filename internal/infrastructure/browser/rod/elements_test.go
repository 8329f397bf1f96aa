package rod

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-agent/internal/domain/entity"
)

func TestParseElements(t *testing.T) {
	data := `[
		{"index":1,"tag":"a","text":"Course catalog","href":"/catalog"},
		{"index":2,"tag":"input","type":"search","placeholder":"Search courses"},
		{"index":3,"tag":"button","text":"  Next \n page  "},
		{"index":4,"tag":"a","href":"javascript:void(0)","aria":"Menu"},
		{"index":5,"tag":"a","href":"/about"}
	]`

	els, err := parseElements(data)
	require.NoError(t, err)

	assert.Equal(t, []entity.Element{
		{Index: 1, Kind: "a", Label: "Course catalog -> /catalog"},
		{Index: 2, Kind: "input type=search", Label: "Search courses"},
		{Index: 3, Kind: "button", Label: "Next page"},
		{Index: 4, Kind: "a", Label: "Menu"},
		{Index: 5, Kind: "a", Label: "/about"},
	}, els)
}

func TestParseElements_LongLabel(t *testing.T) {
	els, err := parseElements(`[{"index":1,"tag":"div","text":"` + strings.Repeat("x", 500) + `"}]`)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Len(t, els[0].Label, maxLabelLen+3)
}

func TestParseElements_Invalid(t *testing.T) {
	_, err := parseElements(`{"index":1}`)
	assert.Error(t, err)

	els, err := parseElements(`[]`)
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestCompress(t *testing.T) {
	img := imaging.New(2048, 1000, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := compress(buf.Bytes(), maxScreenshotWidth)
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, maxScreenshotWidth, decoded.Bounds().Dx())
	assert.Equal(t, 500, decoded.Bounds().Dy())

	_, err = compress([]byte("not an image"), maxScreenshotWidth)
	assert.Error(t, err)
}

func TestCheckURL(t *testing.T) {
	assert.NoError(t, checkURL("https://u.edu/catalog?page=2"))
	assert.NoError(t, checkURL("http://localhost:8080/"))
	assert.ErrorIs(t, checkURL("/catalog"), errNotAbsolute)
	assert.ErrorIs(t, checkURL("ftp://u.edu/file"), errNotAbsolute)
	assert.ErrorIs(t, checkURL("javascript:alert(1)"), errNotAbsolute)
}
