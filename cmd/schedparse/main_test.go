package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no file", nil, 2},
		{"two files", []string{"a.pdf", "b.pdf"}, 2},
		{"unknown flag", []string{"-nope", "a.pdf"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("exit code: got %d, want %d (stderr %q)", got, tt.want, stderr.String())
			}
			if stdout.Len() != 0 {
				t.Errorf("unexpected stdout: %q", stdout.String())
			}
		})
	}
}

func TestRunUnsupportedFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "term.docx")
	if got := run([]string{path}, &stdout, &stderr); got != 2 {
		t.Errorf("exit code: got %d, want 2", got)
	}
	if !strings.Contains(stderr.String(), "unsupported document format") {
		t.Errorf("stderr: %q", stderr.String())
	}
}

func TestRunMissingFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing.pdf")
	if got := run([]string{path}, &stdout, &stderr); got != 1 {
		t.Errorf("exit code: got %d, want 1", got)
	}
}

func TestRunBadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfg := filepath.Join(t.TempDir(), "missing.yaml")
	if got := run([]string{"-config", cfg, "a.pdf"}, &stdout, &stderr); got != 1 {
		t.Errorf("exit code: got %d, want 1", got)
	}
}
