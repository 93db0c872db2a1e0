package ooxml

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
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
          <a:p><a:r><a:rPr lang="en-US"/><a:t>Hello world</a:t></a:r></a:p>
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
		t.Fatalf("close: %v", err)
	}
	p := filepath.Join(t.TempDir(), "deck.pptx")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write pptx: %v", err)
	}
	return p
}

func TestMergeReplacesParagraphText(t *testing.T) {
	path := writeTestPptx(t, map[string]string{
		"ppt/slides/slide1.xml": slide1XML,
		"[Content_Types].xml":   "<Types/>",
	})
	m := &Merger{}
	id := contract.ElementID{SlideIndex: 1, ShapeID: "2", Kind: contract.KindParagraph, Row: 0}
	td := contract.TranslatedDeck{
		Paragraphs: map[contract.ElementID][]contract.Run{
			id: {{Text: "Bonjour le monde", Format: contract.Formatting{}}},
		},
	}
	r, err := m.Merge(context.Background(), path, td)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		t.Fatalf("zip reader: %v", err)
	}
	var slideBytes, contentTypesBytes []byte
	for _, f := range zr.File {
		rc, _ := f.Open()
		data, _ := io.ReadAll(rc)
		rc.Close()
		switch f.Name {
		case "ppt/slides/slide1.xml":
			slideBytes = data
		case "[Content_Types].xml":
			contentTypesBytes = data
		}
	}
	if !bytes.Contains(slideBytes, []byte("Bonjour le monde")) {
		t.Fatalf("expected translated text in slide, got %s", slideBytes)
	}
	if bytes.Contains(slideBytes, []byte("Hello world")) {
		t.Fatalf("expected original text to be gone, got %s", slideBytes)
	}
	if string(contentTypesBytes) != "<Types/>" {
		t.Fatalf("expected untouched content types part, got %s", contentTypesBytes)
	}
}

func TestMergeNoTranslationsPassesThrough(t *testing.T) {
	path := writeTestPptx(t, map[string]string{"ppt/slides/slide1.xml": slide1XML})
	m := &Merger{}
	r, err := m.Merge(context.Background(), path, contract.TranslatedDeck{})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	buf, _ := io.ReadAll(r)
	zr, _ := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	rc, _ := zr.File[0].Open()
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Contains(data, []byte("Hello world")) {
		t.Fatalf("expected untranslated passthrough, got %s", data)
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
          <a:p><a:r><a:rPr lang="en-US"><a:hlinkClick r:id="rId2"/></a:rPr><a:t>report</a:t></a:r></a:p>
        </p:txBody>
      </p:sp>
    </p:spTree>
  </p:cSld>
</p:sld>`

func TestMergePreservesHyperlinkRelationship(t *testing.T) {
	path := writeTestPptx(t, map[string]string{
		"ppt/slides/slide1.xml":           slideWithHyperlinkXML,
		"ppt/slides/_rels/slide1.xml.rels": slide1RelsXML,
	})
	m := &Merger{}
	id := contract.ElementID{SlideIndex: 1, ShapeID: "2", Kind: contract.KindParagraph, Row: 0}
	td := contract.TranslatedDeck{
		Paragraphs: map[contract.ElementID][]contract.Run{
			id: {{Text: "rapport", Format: contract.Formatting{Hyperlink: "https://example.com/report"}}},
		},
	}
	r, err := m.Merge(context.Background(), path, td)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		t.Fatalf("zip reader: %v", err)
	}
	var slideBytes []byte
	for _, f := range zr.File {
		if f.Name == "ppt/slides/slide1.xml" {
			rc, _ := f.Open()
			slideBytes, _ = io.ReadAll(rc)
			rc.Close()
		}
	}
	if !bytes.Contains(slideBytes, []byte("rapport")) {
		t.Fatalf("expected translated text in slide, got %s", slideBytes)
	}
	if !bytes.Contains(slideBytes, []byte(`<a:hlinkClick r:id="rId2"/>`)) {
		t.Fatalf("expected the original relationship id preserved, got %s", slideBytes)
	}
}

const slide1RelsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/report" TargetMode="External"/>
</Relationships>`

var _ contract.Merger = (*Merger)(nil)
