// Package pdf writes minimal PDF 1.4 files holding one full-page JPEG image
// per page.
//
// Object ids are fixed by page position: 1 is the catalog, 2 the page tree,
// and page i (0-based) owns 3+3i (image XObject), 4+3i (content stream) and
// 5+3i (page dictionary).
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"archivia/internal/raster"
)

var (
	ErrNoPages     = errors.New("no pages to assemble")
	ErrInvalidPage = errors.New("page has no image data or size")
)

const (
	catalogID = 1
	pagesID   = 2
)

type object struct {
	dict   string
	stream []byte
}

// Assemble builds a PDF whose pages follow the order of pages, each sized
// to its image in points.
func Assemble(pages []raster.Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	maxID := pagesID + 3*len(pages)
	objs := make([]object, maxID+1)
	kids := make([]string, 0, len(pages))

	for i, p := range pages {
		if len(p.JPEG) == 0 || p.Width <= 0 || p.Height <= 0 {
			return nil, fmt.Errorf("page %d: %w", i+1, ErrInvalidPage)
		}
		imageID, contentID, pageID := 3+3*i, 4+3*i, 5+3*i

		objs[imageID] = object{
			dict: fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>",
				p.Width, p.Height, len(p.JPEG)),
			stream: p.JPEG,
		}

		content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im0 Do Q", p.Width, p.Height)
		objs[contentID] = object{
			dict:   fmt.Sprintf("<< /Length %d >>", len(content)),
			stream: []byte(content),
		}

		objs[pageID] = object{
			dict: fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 %d %d] /Resources << /XObject << /Im0 %d 0 R >> >> /Contents %d 0 R >>",
				pagesID, p.Width, p.Height, imageID, contentID),
		}
		kids = append(kids, fmt.Sprintf("%d 0 R", pageID))
	}

	objs[catalogID] = object{dict: fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesID)}
	objs[pagesID] = object{
		dict: fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
	}

	return serialize(objs), nil
}

// serialize writes objs[1:] in id order followed by the xref table.
func serialize(objs []object) []byte {
	size := 0
	for _, o := range objs {
		size += len(o.dict) + len(o.stream) + 64
	}

	var buf bytes.Buffer
	buf.Grow(size + 20*len(objs) + 128)

	// the binary comment marks the file as 8-bit for transfer tools
	buf.WriteString("%PDF-1.4\n%\xE2\xE3\xCF\xD3\n")

	offsets := make([]int, len(objs))
	for id := 1; id < len(objs); id++ {
		offsets[id] = buf.Len()
		o := objs[id]
		fmt.Fprintf(&buf, "%d 0 obj\n%s", id, o.dict)
		if o.stream != nil {
			buf.WriteString("\nstream\n")
			buf.Write(o.stream)
			buf.WriteString("\nendstream")
		}
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs))
	buf.WriteString("0000000000 65535 f \n")
	for id := 1; id < len(objs); id++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[id])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs), catalogID, xref)

	return buf.Bytes()
}
