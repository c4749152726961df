package ui

import (
	"math"
	"strings"
	"testing"

	"keel/internal/driver"
)

func TestProgressTracksInputs(t *testing.T) {
	events := make(chan driver.BuildEvent)
	m := NewProgressModel("building", []string{"a.kast", "b.kast"}, events).(*model)

	send := func(path, phase string, status driver.BuildStatus) {
		m.Update(eventMsg{Path: path, Phase: phase, Status: status})
	}
	send("a.kast", "lower", driver.BuildWorking)
	send("b.kast", "", driver.BuildCached)
	send("ghost.kast", "ssa", driver.BuildWorking)

	view := m.View()
	for _, want := range []string{"lower", "cached", "a.kast", "b.kast"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "ghost") {
		t.Fatalf("unknown input rendered:\n%s", view)
	}
	if got, want := m.fraction(), (phaseWeight["lower"]+1)/2; math.Abs(got-want) > 1e-9 {
		t.Fatalf("fraction = %v, want %v", got, want)
	}

	send("a.kast", "", driver.BuildFailed)
	if m.fraction() != 1 {
		t.Fatalf("finished inputs must count fully, got %v", m.fraction())
	}
	m.Update(doneMsg{})
	if !strings.HasPrefix(stripANSI(m.View()), "done: building") {
		t.Fatalf("done view:\n%s", m.View())
	}
}

func TestTruncateKeepsWidth(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	got := truncate(strings.Repeat("x", 40), 20)
	if len(got) != 20 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
