package diag_test

import (
	"errors"
	"testing"

	"keel/internal/diag"
	"keel/internal/source"
)

func TestBagLimitStillReportsErrors(t *testing.T) {
	bag := diag.NewBag(1)
	rep := diag.BagReporter{Bag: bag}
	diag.ReportWarning(rep, diag.SchedInfo, source.Span{}, "first").Emit()
	diag.ReportError(rep, diag.LayoutCircular, source.Span{}, "second").Emit()
	if bag.Len() != 1 {
		t.Fatalf("expected 1 kept diagnostic, got %d", bag.Len())
	}
	if !bag.HasErrors() {
		t.Fatal("dropped error must still fail the build")
	}
}

func TestBagSortAndDedup(t *testing.T) {
	bag := diag.NewBag(0)
	bag.Add(diag.NewError(diag.LayoutCircular, source.Span{File: 1, Start: 9, End: 10}, "b"))
	bag.Add(diag.NewError(diag.SchedExportGeneric, source.Span{File: 1, Start: 1, End: 2}, "a"))
	bag.Add(diag.NewError(diag.SchedExportGeneric, source.Span{File: 1, Start: 1, End: 2}, "a"))
	bag.Dedup()
	bag.Sort()
	items := bag.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items after dedup, got %d", len(items))
	}
	if items[0].Code != diag.SchedExportGeneric || items[1].Code != diag.LayoutCircular {
		t.Fatalf("unexpected order: %+v", items)
	}
	if !bag.HasCode(diag.LayoutCircular) {
		t.Fatal("HasCode(LayoutCircular) = false")
	}
}

func TestReportBuilderEmitsOnce(t *testing.T) {
	bag := diag.NewBag(10)
	b := diag.ReportError(diag.BagReporter{Bag: bag}, diag.LayoutCircular, source.Span{}, "cycle").
		WithNote(source.Span{File: 1}, "member here")
	b.Emit()
	b.Emit()
	if bag.Len() != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", bag.Len())
	}
	if len(bag.Items()[0].Notes) != 1 {
		t.Fatalf("note lost: %+v", bag.Items()[0])
	}
}

func TestRecoverInternal(t *testing.T) {
	run := func() (err error) {
		defer diag.RecoverInternal(&err)
		diag.Internalf("variable v%d never bound", 7)
		return nil
	}
	err := run()
	var ie *diag.InternalError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InternalError, got %T (%v)", err, err)
	}
	if ie.Msg != "variable v7 never bound" {
		t.Fatalf("unexpected message %q", ie.Msg)
	}
}

func TestCodeID(t *testing.T) {
	cases := map[diag.Code]string{
		diag.SchedExportGeneric: "SCH4001",
		diag.LayoutCircular:     "LAY4101",
		diag.LowerUnsupported:   "LOW4201",
		diag.EmitMemoryTooSmall: "EMT4301",
		diag.UnknownCode:        "E0000",
	}
	for code, want := range cases {
		if got := code.ID(); got != want {
			t.Errorf("%d.ID() = %q, want %q", code, got, want)
		}
	}
}
