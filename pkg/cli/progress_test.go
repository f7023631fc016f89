package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestBarProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "importing")

	progress.Start(4)
	progress.Update(2)
	progress.Finish()

	output := buf.String()
	if !strings.Contains(output, "importing [") {
		t.Errorf("missing label: %q", output)
	}
	if !strings.Contains(output, "(2/4)") {
		t.Errorf("missing intermediate count: %q", output)
	}
	if !strings.Contains(output, "100.0% (4/4)") {
		t.Errorf("missing final count: %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Error("Finish should end the line")
	}
}

func TestBarProgressClampsOverflow(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "x").(*BarProgress)

	progress.Start(2)
	progress.Update(5)

	if progress.current != 2 {
		t.Errorf("current = %d, want 2", progress.current)
	}
}

func TestBarProgressZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	progress := NewProgressReporter(buf, "x")

	progress.Start(0)
	progress.Update(0)
	progress.Finish()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestNopProgress(t *testing.T) {
	var p ProgressReporter = NopProgress{}
	p.Start(3)
	p.Update(1)
	p.Finish()
}
