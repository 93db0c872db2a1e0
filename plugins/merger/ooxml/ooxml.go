// Package ooxml implements the C8 merger: it clones the source .pptx
// container and rewrites only the XML byte ranges that changed, copying
// every other part through untouched.
package ooxml

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"deckxlate/pkg/contract"
)

// New constructs a Merger. Raw options are currently unused but accepted
// for symmetry with the other registry factories.
func New(raw json.RawMessage) (contract.Merger, error) {
	return &Merger{}, nil
}

// Merger implements contract.Merger over a zipped OOXML package.
type Merger struct{}

var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
var chartPathRe = regexp.MustCompile(`^ppt/charts/chart\d+\.xml$`)

// Merge clones srcPath into a new zip, splicing translated.Paragraphs and
// translated.TableCells into their owning slide parts, and
// translated.ChartLabels into their owning chart parts. Every other part
// is copied byte-for-byte.
func (m *Merger) Merge(ctx context.Context, srcPath string, translated contract.TranslatedDeck) (io.Reader, error) {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", contract.ErrDeckMalformed, srcPath, err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	for _, f := range zr.File {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", contract.ErrDeckMalformed, f.Name, err)
		}

		if m := slidePathRe.FindStringSubmatch(f.Name); m != nil {
			slideIdx, _ := strconv.Atoi(m[1])
			raw, err = rewriteSlidePart(raw, slideIdx, translated, relTargetToID(files, f.Name))
			if err != nil {
				return nil, fmt.Errorf("%w: rewrite %s: %v", contract.ErrWriterIO, f.Name, err)
			}
		} else if chartPathRe.MatchString(f.Name) {
			raw, err = rewriteChartPart(raw, f.Name, translated)
			if err != nil {
				return nil, fmt.Errorf("%w: rewrite %s: %v", contract.ErrWriterIO, f.Name, err)
			}
		}

		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrWriterIO, err)
		}
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrWriterIO, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrWriterIO, err)
	}
	return &out, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type relationshipsXML struct {
	XMLName      xml.Name `xml:"Relationships"`
	Relationship []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// relTargetToID returns partName's relationship target -> ID map. The
// .rels part is never rewritten by Merge, so a run whose Formatting
// carries the same Hyperlink target it was extracted with always finds
// its original relationship ID here.
func relTargetToID(files map[string]*zip.File, partName string) map[string]string {
	dir := partName[:strings.LastIndexByte(partName, '/')+1]
	base := partName[len(dir):]
	f, ok := files[dir+"_rels/"+base+".rels"]
	if !ok {
		return nil
	}
	raw, err := readZipFile(f)
	if err != nil {
		return nil
	}
	var rels relationshipsXML
	if err := xml.Unmarshal(raw, &rels); err != nil {
		return nil
	}
	out := make(map[string]string, len(rels.Relationship))
	for _, r := range rels.Relationship {
		out[r.Target] = r.ID
	}
	return out
}

// byteSpan marks the [start,end) byte range of one <a:p> paragraph
// element inside a slide part, with the ElementID it corresponds to.
type byteSpan struct {
	id         contract.ElementID
	start, end int
}

// rewriteSlidePart walks the slide XML token stream to locate every
// paragraph's byte range, then splices in new paragraph XML for any
// ElementID present in translated, leaving the rest of the document
// untouched.
func rewriteSlidePart(raw []byte, slideIdx int, translated contract.TranslatedDeck, rels map[string]string) ([]byte, error) {
	spans, err := locateParagraphs(raw, slideIdx)
	if err != nil {
		return nil, err
	}

	// Work back-to-front so earlier offsets stay valid as we splice.
	out := raw
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		runs, ok := runsFor(s.id, translated)
		if !ok {
			continue
		}
		original := out[s.start:s.end]
		replacement := renderParagraph(original, runs, rels)
		out = append(out[:s.start:s.start], append(replacement, out[s.end:]...)...)
	}
	return out, nil
}

func runsFor(id contract.ElementID, translated contract.TranslatedDeck) ([]contract.Run, bool) {
	if id.Kind == contract.KindParagraph {
		r, ok := translated.Paragraphs[id]
		return r, ok
	}
	r, ok := translated.TableCells[id]
	return r, ok
}

// locateParagraphs streams the slide XML to find every <a:p> element
// belonging to a shape's txBody or a table cell's txBody, tagging each
// with the ElementID the extractor would have assigned it.
func locateParagraphs(raw []byte, slideIdx int) ([]byteSpan, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var spans []byteSpan

	var shapeID string
	var inTable bool
	var row, col int
	var paraIdx int
	var inCellTxBody bool

	for {
		startOffset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrDeckMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name) {
			case "sp":
				shapeID = ""
				paraIdx = 0
			case "cNvPr":
				if id := attr(t, "id"); id != "" && shapeID == "" {
					shapeID = id
				}
			case "graphicFrame":
				inTable = true
				shapeID = ""
				row, col = -1, -1
			case "tr":
				row++
				col = -1
			case "tc":
				col++
				inCellTxBody = false
				paraIdx = 0
			case "txBody":
				if inTable {
					inCellTxBody = true
				} else {
					paraIdx = 0
				}
			case "p":
				id := contract.ElementID{SlideIndex: slideIdx, ShapeID: shapeID}
				if inTable && inCellTxBody {
					id.Kind = contract.KindTableCell
					id.Row = row
					id.Col = col
					id.LabelKey = strconv.Itoa(paraIdx)
				} else {
					id.Kind = contract.KindParagraph
					id.Row = paraIdx
				}
				end, err := skipToMatchingEnd(dec, "p")
				if err != nil {
					return nil, fmt.Errorf("%w: %v", contract.ErrDeckMalformed, err)
				}
				spans = append(spans, byteSpan{id: id, start: int(startOffset), end: end})
				paraIdx++
			}
		case xml.EndElement:
			if localName(t.Name) == "graphicFrame" {
				inTable = false
			}
		}
	}
	return spans, nil
}

// skipToMatchingEnd consumes tokens until the end element matching name
// at the current nesting depth is found, returning the byte offset just
// past it.
func skipToMatchingEnd(dec *xml.Decoder, name string) (int, error) {
	depth := 1
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if localName(t.Name) == name {
				depth++
			}
		case xml.EndElement:
			if localName(t.Name) == name {
				depth--
				if depth == 0 {
					return int(dec.InputOffset()), nil
				}
			}
		}
	}
}

func localName(n xml.Name) string {
	if i := strings.IndexByte(n.Local, ':'); i >= 0 {
		return n.Local[i+1:]
	}
	return n.Local
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if localName(a.Name) == name {
			return a.Value
		}
	}
	return ""
}

var pPrRe = regexp.MustCompile(`(?s)<a:pPr.*?(?:/>|</a:pPr>)`)

// renderParagraph re-serializes a paragraph, keeping its original
// properties block (bullet/alignment) and replacing its runs with runs.
func renderParagraph(original []byte, runs []contract.Run, rels map[string]string) []byte {
	openTag := "<a:p>"
	if idx := bytes.IndexByte(original, '>'); idx >= 0 {
		openTag = string(original[:idx+1])
	}
	pPr := pPrRe.Find(original)

	var b strings.Builder
	b.WriteString(openTag)
	if pPr != nil {
		b.Write(pPr)
	}
	for _, r := range runs {
		b.WriteString(renderRun(r, rels))
	}
	b.WriteString("</a:p>")
	return []byte(b.String())
}

func renderRun(r contract.Run, rels map[string]string) string {
	var b strings.Builder
	b.WriteString("<a:r><a:rPr")
	if r.Format.Bold {
		b.WriteString(` b="1"`)
	}
	if r.Format.Italic {
		b.WriteString(` i="1"`)
	}
	if r.Format.Underline {
		b.WriteString(` u="sng"`)
	}
	if r.Format.FontSizePt > 0 {
		fmt.Fprintf(&b, ` sz="%d"`, int(r.Format.FontSizePt*100))
	}
	switch {
	case r.Format.Superscript:
		b.WriteString(` baseline="30000"`)
	case r.Format.Subscript:
		b.WriteString(` baseline="-25000"`)
	}
	if r.Format.Lang != "" {
		fmt.Fprintf(&b, ` lang="%s"`, escapeAttr(r.Format.Lang))
	}
	hlinkID := ""
	if r.Format.Hyperlink != "" {
		hlinkID = rels[r.Format.Hyperlink]
	}
	hasChildren := r.Format.FontFamily != "" || r.Format.Color != "" || hlinkID != ""
	if !hasChildren {
		b.WriteString("/>")
	} else {
		b.WriteString(">")
		if r.Format.Color != "" {
			fmt.Fprintf(&b, `<a:solidFill><a:srgbClr val="%s"/></a:solidFill>`, escapeAttr(r.Format.Color))
		}
		if r.Format.FontFamily != "" {
			fmt.Fprintf(&b, `<a:latin typeface="%s"/>`, escapeAttr(r.Format.FontFamily))
		}
		if hlinkID != "" {
			fmt.Fprintf(&b, `<a:hlinkClick r:id="%s"/>`, escapeAttr(hlinkID))
		}
		b.WriteString("</a:rPr>")
	}
	b.WriteString("<a:t>")
	xml.EscapeText(&b, []byte(r.Text))
	b.WriteString("</a:t></a:r>")
	return b.String()
}

func escapeAttr(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// --- chart label rewriting -------------------------------------------

func rewriteChartPart(raw []byte, partName string, translated contract.TranslatedDeck) ([]byte, error) {
	if len(translated.ChartLabels) == 0 {
		return raw, nil
	}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var serIdx = -1
	var mode string // "series" (inside tx) or "cat"
	type ptSpan struct {
		id         contract.ElementID
		start, end int
	}
	var spans []ptSpan

	for {
		startOffset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contract.ErrDeckMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch localName(t.Name) {
			case "ser":
				serIdx++
			case "tx":
				mode = "series"
			case "cat":
				mode = "cat"
			case "pt":
				idxAttr := attr(t, "idx")
				labelKey := fmt.Sprintf("%s:%s", mode, idxAttr)
				id := contract.ElementID{
					ShapeID:  partName,
					Kind:     contract.KindChartLabel,
					Row:      serIdx,
					LabelKey: labelKey,
				}
				end, err := skipToMatchingEnd(dec, "pt")
				if err != nil {
					return nil, fmt.Errorf("%w: %v", contract.ErrDeckMalformed, err)
				}
				spans = append(spans, ptSpan{id: id, start: int(startOffset), end: end})
			}
		}
	}

	out := raw
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		text, ok := translated.ChartLabels[s.id]
		if !ok {
			continue
		}
		replacement := renderChartPoint(out[s.start:s.end], text)
		out = append(out[:s.start:s.start], append(replacement, out[s.end:]...)...)
	}
	return out, nil
}

var ptVRe = regexp.MustCompile(`(?s)<c:v>.*?</c:v>`)

func renderChartPoint(original []byte, text string) []byte {
	loc := ptVRe.FindIndex(original)
	if loc == nil {
		return original
	}
	var escaped strings.Builder
	xml.EscapeText(&escaped, []byte(text))
	replacement := []byte("<c:v>" + escaped.String() + "</c:v>")
	out := make([]byte, 0, len(original)-(loc[1]-loc[0])+len(replacement))
	out = append(out, original[:loc[0]]...)
	out = append(out, replacement...)
	out = append(out, original[loc[1]:]...)
	return out
}

var _ contract.Merger = (*Merger)(nil)
