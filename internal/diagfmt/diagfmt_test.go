package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"keel/internal/diag"
	"keel/internal/source"
)

func sampleBag() (*diag.Bag, *source.Files) {
	files := &source.Files{}
	id := files.Add("src/shapes.kast")
	bag := diag.NewBag(0)
	bag.Add(diag.NewError(diag.LayoutCircular, source.Span{File: id, Start: 10, End: 14}, "A contains itself by value").
		WithNote(source.Span{File: id, Start: 30, End: 31}, "through field b"))
	bag.Add(diag.New(diag.SevWarning, diag.SchedBadExportName, source.Span{}, "odd name"))
	return bag, files
}

func TestPrettyPlain(t *testing.T) {
	bag, files := sampleBag()
	var buf bytes.Buffer
	if err := Pretty(&buf, bag, files, PrettyOpts{ShowNotes: true, PathMode: PathModeBasename}); err != nil {
		t.Fatal(err)
	}
	want := "shapes.kast:10-14: ERROR LAY4101: A contains itself by value\n" +
		"  note shapes.kast:30-31: through field b\n" +
		"<synthetic>: WARNING SCH4005: odd name\n"
	if got := buf.String(); got != want {
		t.Fatalf("Pretty output:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrettyReportsDropped(t *testing.T) {
	bag := diag.NewBag(1)
	bag.Add(diag.NewError(diag.LowerUnsupported, source.Span{}, "one"))
	bag.Add(diag.NewError(diag.LowerUnsupported, source.Span{}, "two"))
	var buf bytes.Buffer
	if err := Pretty(&buf, bag, &source.Files{}, PrettyOpts{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "1 more diagnostics not shown") {
		t.Fatalf("missing dropped line: %q", buf.String())
	}
}

func TestJSONShape(t *testing.T) {
	bag, files := sampleBag()
	var buf bytes.Buffer
	if err := JSON(&buf, bag, files, JSONOpts{IncludeNotes: true, Max: 1}); err != nil {
		t.Fatal(err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out.Count != 2 || len(out.Diagnostics) != 1 {
		t.Fatalf("count=%d listed=%d", out.Count, len(out.Diagnostics))
	}
	d := out.Diagnostics[0]
	if d.Code != "LAY4101" || d.Location.File != "src/shapes.kast" || len(d.Notes) != 1 {
		t.Fatalf("unexpected diagnostic %+v", d)
	}
}
