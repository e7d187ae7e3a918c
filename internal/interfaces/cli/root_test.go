package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	if cmd == nil {
		t.Fatal("NewRootCommand should return a command")
	}

	if cmd.Use != "medfuse" {
		t.Errorf("expected Use='medfuse', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}
	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
	if cmd.Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestNewRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	expected := []string{"analyze [text]", "serve", "version"}
	subNames := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subNames[sub.Use] = true
	}

	for _, name := range expected {
		if !subNames[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	pf := cmd.PersistentFlags()

	for _, name := range []string{"config", "log-level", "output", "verbose", "no-color", "timeout", "server"} {
		if pf.Lookup(name) == nil {
			t.Errorf("persistent flag %q should exist", name)
		}
	}

	if f := pf.Lookup("output"); f != nil && f.DefValue != "text" {
		t.Errorf("output flag default should be 'text', got %q", f.DefValue)
	}
	if f := pf.Lookup("log-level"); f != nil && f.DefValue != "info" {
		t.Errorf("log-level flag default should be 'info', got %q", f.DefValue)
	}
	if f := pf.Lookup("timeout"); f != nil && f.DefValue != "30s" {
		t.Errorf("timeout flag default should be '30s', got %q", f.DefValue)
	}
	if f := pf.Lookup("verbose"); f != nil && f.Shorthand != "v" {
		t.Errorf("verbose flag shorthand should be 'v', got %q", f.Shorthand)
	}
}

func TestGetCLIContext_NotInitialized(t *testing.T) {
	cmd := NewRootCommand()

	if _, err := GetCLIContext(cmd); err == nil {
		t.Error("expected error when CLI context is not initialized")
	}
}

func TestRootCommand_VersionSubcommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if !strings.Contains(out.String(), "medfuse") {
		t.Errorf("version output should mention medfuse, got %q", out.String())
	}
	if !strings.Contains(out.String(), Version) {
		t.Errorf("version output should contain %q, got %q", Version, out.String())
	}
}

func TestRootCommand_VersionJSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version", "-o", "json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execution failed: %v", err)
	}

	var info versionInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version output is not valid JSON: %v\n%s", err, out.String())
	}
	if info.Version != Version {
		t.Errorf("expected version %q, got %q", Version, info.Version)
	}
	if info.GoVersion == "" {
		t.Error("go_version should not be empty")
	}
}

func TestRootCommand_UnknownSubcommand(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"definitely-not-a-command"})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for unknown subcommand")
	}
}

func TestFormatTable_Basic(t *testing.T) {
	color.NoColor = true

	out := FormatTable(
		[]string{"Name", "Value"},
		[][]string{{"alpha", "1"}, {"beta", "2"}},
	)

	for _, want := range []string{"NAME", "VALUE", "alpha", "beta"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output should contain %q, got:\n%s", want, out)
		}
	}
}

func TestFormatTable_EmptyHeaders(t *testing.T) {
	if out := FormatTable(nil, [][]string{{"a"}}); out != "" {
		t.Errorf("expected empty output for no headers, got %q", out)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"abcdefghijk", 10, "abcdefg..."},
		{"ab", 2, "ab"},
		{"abcd", 3, "abc"},
		{"perché è così", 9, "perché..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestPrintHelpers(t *testing.T) {
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	PrintSuccess(cmd, "done")
	if !strings.Contains(out.String(), "OK: done") {
		t.Errorf("PrintSuccess output wrong: %q", out.String())
	}

	PrintError(cmd, nil)
	if errOut.Len() != 0 {
		t.Error("PrintError with nil error should write nothing")
	}
}
