package main

import (
	"strings"
	"testing"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("Daemon", statusOK, "running", false)
	if !strings.Contains(line, "Daemon:") {
		t.Fatalf("missing label: %q", line)
	}
	if !strings.Contains(line, "[OK] running") {
		t.Fatalf("missing status text: %q", line)
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("plain rendering must not contain ANSI escapes: %q", line)
	}
}

func TestRenderStatusLineColorized(t *testing.T) {
	line := renderStatusLine("Camera", statusError, "not detected", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected red wrapping: %q", line)
	}
}

func TestRenderStatusLineWithoutMessage(t *testing.T) {
	line := renderStatusLine("Solver", statusWarn, "", false)
	if !strings.HasSuffix(strings.TrimRight(line, " "), "[WARN]") {
		t.Fatalf("expected bare status marker at end: %q", line)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	cases := map[string]statusKind{
		"ok":      statusOK,
		"OK":      statusOK,
		"warn":    statusWarn,
		"error":   statusError,
		"info":    statusInfo,
		"unknown": statusInfo,
	}
	for input, want := range cases {
		if got := statusKindFromSeverity(input); got != want {
			t.Errorf("statusKindFromSeverity(%q) = %v, want %v", input, got, want)
		}
	}
}
