package pdf

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivia/internal/docformat"
	"archivia/internal/raster"
	"archivia/internal/testutil"
)

var (
	startxrefRe = regexp.MustCompile(`startxref\n(\d+)\n%%EOF\n$`)
	xrefEntryRe = regexp.MustCompile(`(\d{10}) (\d{5}) ([nf]) \n`)
)

func page(t *testing.T, w, h int) raster.Page {
	t.Helper()
	p, err := raster.Rasterize(testutil.JPEG(w, h), docformat.MIMEJPEG)
	require.NoError(t, err)
	return p
}

// offsets parses the xref table and returns the byte offset of every in-use object.
func offsets(t *testing.T, out []byte) map[int]int {
	t.Helper()

	m := startxrefRe.FindSubmatch(out)
	require.NotNil(t, m, "missing startxref trailer")
	xref, err := strconv.Atoi(string(m[1]))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out[xref:], []byte("xref\n0 ")))

	res := map[int]int{}
	for i, e := range xrefEntryRe.FindAllSubmatch(out[xref:], -1) {
		if string(e[3]) == "f" {
			continue
		}
		off, err := strconv.Atoi(string(e[1]))
		require.NoError(t, err)
		res[i] = off
	}
	return res
}

func objectBody(t *testing.T, out []byte, offs map[int]int, id int) string {
	t.Helper()
	off, ok := offs[id]
	require.True(t, ok, "object %d missing from xref", id)
	body := string(out[off:])
	end := strings.Index(body, "endobj")
	require.Greater(t, end, 0)
	return body[:end]
}

func TestAssemble_SinglePage(t *testing.T) {
	p := page(t, 100, 200)

	out, err := Assemble([]raster.Page{p})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-1.4\n")))
	assert.True(t, bytes.HasSuffix(out, []byte("%%EOF\n")))
	assert.NoError(t, docformat.Validate(out, docformat.MIMEPDF))
	assert.Equal(t, docformat.MIMEPDF, docformat.DetectMIME(out))

	offs := offsets(t, out)
	assert.Len(t, offs, 5)

	assert.Contains(t, objectBody(t, out, offs, 1), "/Type /Catalog /Pages 2 0 R")
	assert.Contains(t, objectBody(t, out, offs, 2), "/Kids [5 0 R] /Count 1")

	img := objectBody(t, out, offs, 3)
	assert.Contains(t, img, "/Subtype /Image /Width 100 /Height 200")
	assert.Contains(t, img, "/Filter /DCTDecode")
	assert.Contains(t, img, fmt.Sprintf("/Length %d", len(p.JPEG)))
	assert.Contains(t, img, string(p.JPEG))

	assert.Contains(t, objectBody(t, out, offs, 4), "q 100 0 0 200 0 0 cm /Im0 Do Q")

	pg := objectBody(t, out, offs, 5)
	assert.Contains(t, pg, "/MediaBox [0 0 100 200]")
	assert.Contains(t, pg, "/XObject << /Im0 3 0 R >>")
	assert.Contains(t, pg, "/Contents 4 0 R")

	assert.Contains(t, string(out), "trailer\n<< /Size 6 /Root 1 0 R >>")
}

func TestAssemble_XrefOffsetsExact(t *testing.T) {
	out, err := Assemble([]raster.Page{page(t, 10, 10), page(t, 20, 30)})
	require.NoError(t, err)

	offs := offsets(t, out)
	require.Len(t, offs, 8)
	for id, off := range offs {
		assert.True(t, bytes.HasPrefix(out[off:], []byte(fmt.Sprintf("%d 0 obj\n", id))), "object %d", id)
	}
}

func TestAssemble_PageOrder(t *testing.T) {
	pages := []raster.Page{page(t, 10, 11), page(t, 20, 21), page(t, 30, 31)}

	out, err := Assemble(pages)
	require.NoError(t, err)

	offs := offsets(t, out)
	assert.Contains(t, objectBody(t, out, offs, 2), "/Kids [5 0 R 8 0 R 11 0 R] /Count 3")
	assert.Contains(t, objectBody(t, out, offs, 5), "/MediaBox [0 0 10 11]")
	assert.Contains(t, objectBody(t, out, offs, 8), "/MediaBox [0 0 20 21]")
	assert.Contains(t, objectBody(t, out, offs, 11), "/MediaBox [0 0 30 31]")
	assert.Contains(t, objectBody(t, out, offs, 11), "/Im0 9 0 R")
}

func TestAssemble_Errors(t *testing.T) {
	_, err := Assemble(nil)
	assert.ErrorIs(t, err, ErrNoPages)

	_, err = Assemble([]raster.Page{{JPEG: []byte{0xFF, 0xD8}, Width: 0, Height: 5}})
	assert.ErrorIs(t, err, ErrInvalidPage)
}
