// Package ooxml implements the C3 deck extractor for .pptx containers.
//
// No library in the retrieved corpus binds OOXML/pptx parsing; this
// package is built directly on archive/zip and encoding/xml, which is
// the justified exception to the third-party-first rule (see DESIGN.md).
package ooxml

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"deckxlate/pkg/contract"
)

// Options configures the extractor.
type Options struct {
	// IncludeChartLabels controls whether embedded chart parts are walked
	// for series/category/data labels. Default true.
	IncludeChartLabels *bool `json:"include_chart_labels,omitempty"`
}

// Extractor implements contract.Extractor over a zipped OOXML package.
type Extractor struct {
	includeCharts bool
}

// New constructs an Extractor from opts. A nil opts uses defaults.
func New(opts *Options) *Extractor {
	includeCharts := true
	if opts != nil && opts.IncludeChartLabels != nil {
		includeCharts = *opts.IncludeChartLabels
	}
	return &Extractor{includeCharts: includeCharts}
}

var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
var chartPathRe = regexp.MustCompile(`^ppt/charts/chart(\d+)\.xml$`)

// Extract opens path as a zip archive and walks its slide/table/chart XML
// parts into a Deck. Any structural failure is reported as
// contract.ErrDeckMalformed, fatal to the job per spec.
func (e *Extractor) Extract(ctx context.Context, path_ string) (*contract.Deck, error) {
	zr, err := zip.OpenReader(path_)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", contract.ErrDeckMalformed, path_, err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var slideNames []string
	for name := range files {
		if slidePathRe.MatchString(name) {
			slideNames = append(slideNames, name)
		}
	}
	if len(slideNames) == 0 {
		return nil, fmt.Errorf("%w: no slide parts in %s", contract.ErrDeckMalformed, path_)
	}
	sort.Slice(slideNames, func(i, j int) bool {
		return slideNumber(slideNames[i]) < slideNumber(slideNames[j])
	})

	deck := &contract.Deck{SlideCount: len(slideNames)}
	chartParts := map[string]bool{}

	for _, name := range slideNames {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		slideIdx := slideNumber(name)
		raw, err := readZipFile(files[name])
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", contract.ErrDeckMalformed, name, err)
		}
		var sld slideXML
		if err := xml.Unmarshal(raw, &sld); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", contract.ErrDeckMalformed, name, err)
		}
		rels := relMap(files, name)
		paragraphs, cells := walkShapeTree(slideIdx, sld.CommonSlideData.ShapeTree, rels)
		deck.Paragraphs = append(deck.Paragraphs, paragraphs...)
		deck.TableCells = append(deck.TableCells, cells...)

		if e.includeCharts {
			for _, rel := range relsFor(files, name) {
				if chartPathRe.MatchString(rel) {
					chartParts[rel] = true
				}
			}
		}
	}

	if e.includeCharts {
		var chartNames []string
		for name := range chartParts {
			chartNames = append(chartNames, name)
		}
		sort.Strings(chartNames)
		for _, name := range chartNames {
			raw, err := readZipFile(files[name])
			if err != nil {
				return nil, fmt.Errorf("%w: read %s: %v", contract.ErrDeckMalformed, name, err)
			}
			labels, err := walkChartLabels(name, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", contract.ErrDeckMalformed, name, err)
			}
			deck.ChartLabels = append(deck.ChartLabels, labels...)
		}
	}

	return deck, nil
}

func slideNumber(name string) int {
	m := slidePathRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// relsFor returns the relationship targets (resolved to package-root
// paths) declared by the part's sibling .rels file.
func relsFor(files map[string]*zip.File, partName string) []string {
	dir, base := path.Split(partName)
	relsName := dir + "_rels/" + base + ".rels"
	f, ok := files[relsName]
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
	out := make([]string, 0, len(rels.Relationship))
	for _, r := range rels.Relationship {
		out = append(out, path.Clean(path.Join(dir, "..", r.Target)))
	}
	return out
}

// relMap returns the part's relationship ID -> target map, used to
// resolve a:hlinkClick's r:id into an actual hyperlink URL. External
// targets (TargetMode="External", the normal case for a:hlinkClick) are
// kept as-is; internal targets are left relative, since nothing downstream
// currently follows them.
func relMap(files map[string]*zip.File, partName string) map[string]string {
	dir, base := path.Split(partName)
	relsName := dir + "_rels/" + base + ".rels"
	f, ok := files[relsName]
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
		out[r.ID] = r.Target
	}
	return out
}

// --- minimal OOXML XML shapes -------------------------------------------
//
// Only the elements this extractor needs are modeled; everything else in
// the slide part is left alone and merged back byte-for-byte by C8.

type relationshipsXML struct {
	XMLName      xml.Name `xml:"Relationships"`
	Relationship []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type slideXML struct {
	XMLName         xml.Name `xml:"sld"`
	CommonSlideData struct {
		ShapeTree shapeTreeXML `xml:"spTree"`
	} `xml:"cSld"`
}

type shapeTreeXML struct {
	Sp    []spXML      `xml:"sp"`
	Table []graphicXML `xml:"graphicFrame"`
}

type spXML struct {
	NvSpPr struct {
		CNvPr struct {
			ID   string `xml:"id,attr"`
			Name string `xml:"name,attr"`
		} `xml:"cNvPr"`
	} `xml:"nvSpPr"`
	TxBody *txBodyXML `xml:"txBody"`
}

type graphicXML struct {
	NvGraphicFramePr struct {
		CNvPr struct {
			ID string `xml:"id,attr"`
		} `xml:"cNvPr"`
	} `xml:"nvGraphicFramePr"`
	Graphic struct {
		GraphicData struct {
			Table *tableXML `xml:"tbl"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

type tableXML struct {
	Rows []tableRowXML `xml:"tr"`
}

type tableRowXML struct {
	Cells []tableCellXML `xml:"tc"`
}

type tableCellXML struct {
	HMerge bool       `xml:"hMerge,attr"`
	VMerge bool       `xml:"vMerge,attr"`
	TxBody *txBodyXML `xml:"txBody"`
}

type txBodyXML struct {
	Paragraphs []paragraphXML `xml:"p"`
}

type paragraphXML struct {
	PPr *paragraphPropsXML `xml:"pPr"`
	Runs []runXML `xml:"r"`
}

type paragraphPropsXML struct {
	Bullet  *struct{} `xml:"buChar"`
	NoneBul *struct{} `xml:"buNone"`
	Align   string    `xml:"algn,attr"`
}

type runXML struct {
	Props *runPropsXML `xml:"rPr"`
	Text  string       `xml:"t"`
}

type runPropsXML struct {
	Bold      string `xml:"b,attr"`
	Italic    string `xml:"i,attr"`
	Underline string `xml:"u,attr"`
	Size      string `xml:"sz,attr"`
	Lang      string `xml:"lang,attr"`
	Baseline  string `xml:"baseline,attr"`
	Latin     struct {
		Typeface string `xml:"typeface,attr"`
	} `xml:"latin"`
	SolidFill struct {
		SrgbClr struct {
			Val string `xml:"val,attr"`
		} `xml:"srgbClr"`
	} `xml:"solidFill"`
	HlinkClick *struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"hlinkClick"`
}

// --- shape-tree walking --------------------------------------------------

func walkShapeTree(slideIdx int, tree shapeTreeXML, rels map[string]string) ([]contract.Paragraph, []contract.TableCell) {
	var paragraphs []contract.Paragraph
	var cells []contract.TableCell

	for _, sp := range tree.Sp {
		if sp.TxBody == nil {
			continue
		}
		shapeID := sp.NvSpPr.CNvPr.ID
		for pi, p := range sp.TxBody.Paragraphs {
			para := buildParagraph(contract.ElementID{
				SlideIndex: slideIdx,
				ShapeID:    shapeID,
				Kind:       contract.KindParagraph,
				Row:        pi,
			}, p, rels)
			if len(para.Runs) > 0 {
				paragraphs = append(paragraphs, para)
			}
		}
	}

	for _, gf := range tree.Table {
		if gf.Graphic.GraphicData.Table == nil {
			continue
		}
		shapeID := gf.NvGraphicFramePr.CNvPr.ID
		anchors := map[[2]int]contract.ElementID{}
		for ri, row := range gf.Graphic.GraphicData.Table.Rows {
			for ci, tc := range row.Cells {
				id := contract.ElementID{
					SlideIndex: slideIdx,
					ShapeID:    shapeID,
					Kind:       contract.KindTableCell,
					Row:        ri,
					Col:        ci,
				}
				cell := contract.TableCell{ID: id}
				if tc.HMerge || tc.VMerge {
					anchorRow, anchorCol := ri, ci
					if tc.VMerge {
						anchorRow--
					}
					if tc.HMerge {
						anchorCol--
					}
					if anchor, ok := anchors[[2]int{anchorRow, anchorCol}]; ok {
						cell.MergeAnchor = &anchor
					}
				} else {
					anchors[[2]int{ri, ci}] = id
					if tc.TxBody != nil {
						for pi, p := range tc.TxBody.Paragraphs {
							para := buildParagraph(contract.ElementID{
								SlideIndex: slideIdx,
								ShapeID:    shapeID,
								Kind:       contract.KindTableCell,
								Row:        ri,
								Col:        ci,
								LabelKey:   strconv.Itoa(pi),
							}, p, rels)
							if len(para.Runs) > 0 {
								cell.Paragraphs = append(cell.Paragraphs, para)
							}
						}
					}
				}
				cells = append(cells, cell)
			}
		}
	}

	return paragraphs, cells
}

func buildParagraph(id contract.ElementID, p paragraphXML, rels map[string]string) contract.Paragraph {
	para := contract.Paragraph{ID: id}
	if p.PPr != nil {
		para.Bullet = p.PPr.Bullet != nil
		para.Align = p.PPr.Align
	}
	counts := map[contract.Formatting]int{}
	for _, r := range p.Runs {
		if r.Text == "" {
			continue
		}
		f := formatFromProps(r.Props, rels)
		para.Runs = append(para.Runs, contract.Run{Text: r.Text, Format: f})
		if !isWhitespaceOnly(r.Text) {
			counts[f]++
		}
	}
	para.BaseFormat = mostCommonFormat(counts)
	return para
}

func formatFromProps(p *runPropsXML, rels map[string]string) contract.Formatting {
	if p == nil {
		return contract.Formatting{}
	}
	f := contract.Formatting{
		Bold:       p.Bold == "1" || strings.EqualFold(p.Bold, "true"),
		Italic:     p.Italic == "1" || strings.EqualFold(p.Italic, "true"),
		Underline:  p.Underline != "" && p.Underline != "none",
		FontFamily: p.Latin.Typeface,
		Lang:       p.Lang,
		Color:      p.SolidFill.SrgbClr.Val,
	}
	if p.Size != "" {
		if pts, err := strconv.Atoi(p.Size); err == nil {
			f.FontSizePt = float64(pts) / 100
		}
	}
	if p.HlinkClick != nil && p.HlinkClick.RID != "" {
		if target, ok := rels[p.HlinkClick.RID]; ok {
			f.Hyperlink = target
		}
	}
	if p.Baseline != "" {
		if bp, err := strconv.Atoi(p.Baseline); err == nil {
			switch {
			case bp > 0:
				f.Superscript = true
			case bp < 0:
				f.Subscript = true
			}
		}
	}
	return f
}

func isWhitespaceOnly(s string) bool {
	return strings.TrimSpace(s) == ""
}

func mostCommonFormat(counts map[contract.Formatting]int) contract.Formatting {
	var best contract.Formatting
	bestCount := -1
	for f, n := range counts {
		if n > bestCount {
			bestCount = n
			best = f
		}
	}
	return best
}

// --- chart label walking -------------------------------------------------

type chartSpaceXML struct {
	XMLName xml.Name `xml:"chartSpace"`
	Chart   struct {
		Series []chartSeriesXML `xml:"plotArea>barChart>ser"`
	} `xml:"chart"`
}

type chartSeriesXML struct {
	Idx int `xml:"idx>val,attr"`
	Tx  struct {
		StrRef struct {
			StrCache struct {
				Pt []chartPtXML `xml:"pt"`
			} `xml:"strCache"`
		} `xml:"strRef"`
	} `xml:"tx"`
	Cat struct {
		StrRef struct {
			StrCache struct {
				Pt []chartPtXML `xml:"pt"`
			} `xml:"strCache"`
		} `xml:"strRef"`
	} `xml:"cat"`
}

type chartPtXML struct {
	Idx int    `xml:"idx,attr"`
	V   string `xml:"v"`
}

func walkChartLabels(partName string, raw []byte) ([]contract.ChartLabel, error) {
	var cs chartSpaceXML
	if err := xml.Unmarshal(raw, &cs); err != nil {
		return nil, err
	}
	chartID := partName
	var labels []contract.ChartLabel
	for si, ser := range cs.Chart.Series {
		for _, pt := range ser.Tx.StrRef.StrCache.Pt {
			if pt.V == "" {
				continue
			}
			labels = append(labels, contract.ChartLabel{
				ID: contract.ElementID{
					ShapeID:  chartID,
					Kind:     contract.KindChartLabel,
					Row:      si,
					LabelKey: fmt.Sprintf("series:%d", pt.Idx),
				},
				Text: pt.V,
			})
		}
		for _, pt := range ser.Cat.StrRef.StrCache.Pt {
			if pt.V == "" {
				continue
			}
			labels = append(labels, contract.ChartLabel{
				ID: contract.ElementID{
					ShapeID:  chartID,
					Kind:     contract.KindChartLabel,
					Row:      si,
					LabelKey: fmt.Sprintf("cat:%d", pt.Idx),
				},
				Text: pt.V,
			})
		}
	}
	return labels, nil
}

var _ contract.Extractor = (*Extractor)(nil)
