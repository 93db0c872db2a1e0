package ooxml

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"deckxlate/pkg/contract"
)

const slide1XML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld>
    <p:spTree>
      <p:sp>
        <p:nvSpPr><p:cNvPr id="2" name="Title 1"/></p:nvSpPr>
        <p:txBody>
          <a:p>
            <a:r><a:rPr b="1" sz="2400" lang="en-US"><a:latin typeface="Calibri"/></a:rPr><a:t>Hello</a:t></a:r>
            <a:r><a:rPr lang="en-US"/><a:t> world</a:t></a:r>
          </a:p>
        </p:txBody>
      </p:sp>
    </p:spTree>
  </p:cSld>
</p:sld>`

func writeTestPptx(t *testing.T, slides map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range slides {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	path := filepath.Join(t.TempDir(), "deck.pptx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write pptx: %v", err)
	}
	return path
}

func TestExtractParsesParagraphRuns(t *testing.T) {
	path := writeTestPptx(t, map[string]string{"ppt/slides/slide1.xml": slide1XML})
	ex := New(nil)
	deck, err := ex.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if deck.SlideCount != 1 {
		t.Fatalf("expected 1 slide, got %d", deck.SlideCount)
	}
	if len(deck.Paragraphs) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(deck.Paragraphs))
	}
	p := deck.Paragraphs[0]
	if p.SourceText() != "Hello world" {
		t.Fatalf("unexpected text: %q", p.SourceText())
	}
	if !p.Runs[0].Format.Bold {
		t.Fatalf("expected first run bold")
	}
	if p.Runs[0].Format.FontSizePt != 24 {
		t.Fatalf("expected 24pt, got %v", p.Runs[0].Format.FontSizePt)
	}
}

func TestExtractRejectsNoSlides(t *testing.T) {
	path := writeTestPptx(t, map[string]string{"[Content_Types].xml": "<Types/>"})
	ex := New(nil)
	_, err := ex.Extract(context.Background(), path)
	if err == nil {
		t.Fatalf("expected error for deck with no slides")
	}
}

func TestExtractMissingFile(t *testing.T) {
	ex := New(nil)
	_, err := ex.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pptx"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

const slideWithHyperlinkXML = `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"
       xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <p:cSld>
    <p:spTree>
      <p:sp>
        <p:nvSpPr><p:cNvPr id="2" name="Title 1"/></p:nvSpPr>
        <p:txBody>
          <a:p>
            <a:r><a:rPr lang="en-US"><a:hlinkClick r:id="rId2"/></a:rPr><a:t>report</a:t></a:r>
            <a:r><a:rPr lang="en-US" baseline="30000"/><a:t>2</a:t></a:r>
          </a:p>
        </p:txBody>
      </p:sp>
    </p:spTree>
  </p:cSld>
</p:sld>`

const slide1RelsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/report" TargetMode="External"/>
</Relationships>`

func TestExtractCapturesHyperlinkAndBaseline(t *testing.T) {
	path := writeTestPptx(t, map[string]string{
		"ppt/slides/slide1.xml":           slideWithHyperlinkXML,
		"ppt/slides/_rels/slide1.xml.rels": slide1RelsXML,
	})
	ex := New(nil)
	deck, err := ex.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(deck.Paragraphs) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(deck.Paragraphs))
	}
	runs := deck.Paragraphs[0].Runs
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d: %+v", len(runs), runs)
	}
	if runs[0].Format.Hyperlink != "https://example.com/report" {
		t.Fatalf("expected resolved hyperlink target, got %q", runs[0].Format.Hyperlink)
	}
	if !runs[1].Format.Superscript {
		t.Fatalf("expected second run superscript from baseline=30000")
	}
	if runs[0].Format.Superscript || runs[1].Format.Hyperlink != "" {
		t.Fatalf("formatting leaked across runs: %+v", runs)
	}
}

var _ contract.Extractor = (*Extractor)(nil)
