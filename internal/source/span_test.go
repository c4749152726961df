package source

import "testing"

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	got := a.Cover(b)
	if got.Start != 2 || got.End != 8 {
		t.Fatalf("cover: got %v", got)
	}
	c := Span{File: 2, Start: 0, End: 100}
	if a.Cover(c) != a {
		t.Fatalf("cover across files must keep the receiver")
	}
}

func TestFilesFormat(t *testing.T) {
	var fs Files
	id := fs.Add("main.kl")
	if got := fs.Format(Span{File: id, Start: 1, End: 3}); got != "main.kl:1-3" {
		t.Fatalf("format: got %q", got)
	}
	if got := fs.Format(Span{}); got != "<synthetic>" {
		t.Fatalf("synthetic: got %q", got)
	}
	if got := fs.Path(42); got != "<unknown>" {
		t.Fatalf("unknown: got %q", got)
	}
}
