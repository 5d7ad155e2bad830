package main

import (
	"bytes"
	"strings"
	"testing"
)

func newTestConsole(input string) (*console, *bytes.Buffer) {
	var out bytes.Buffer
	return newConsole(strings.NewReader(input), &out), &out
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "yes\n", true},
		{"short and capitalised", "Y\n", true},
		{"no", "No\n", false},
		{"repeats until answered", "maybe\n\nyes\n", true},
		{"end of input", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestConsole(tt.input)
			if got := c.Confirm("Proceed?"); got != tt.want {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAskInt(t *testing.T) {
	c, out := newTestConsole("three\n0\n3\n")
	n, ok := c.askInt("Copies : ", 1)
	if !ok || n != 3 {
		t.Fatalf("want 3, got %d (ok=%v)", n, ok)
	}
	if !strings.Contains(out.String(), "Please enter an integer.") || !strings.Contains(out.String(), "at least 1") {
		t.Fatalf("missing retry messages:\n%s", out.String())
	}

	c, _ = newTestConsole("cancel\n")
	if _, ok := c.askInt("Copies : ", 1); ok {
		t.Fatalf("cancel should end the prompt")
	}
}

func TestNewSecretRequiresMatchingEntries(t *testing.T) {
	c, out := newTestConsole("one\ntwo\nsame\nsame\n")
	secret, ok := c.newSecret("Password : ")
	if !ok || secret != "same" {
		t.Fatalf("want same, got %q (ok=%v)", secret, ok)
	}
	if !strings.Contains(out.String(), "do not match") {
		t.Fatalf("missing mismatch message:\n%s", out.String())
	}
}

func TestNewSecretRejectsEmptyEntries(t *testing.T) {
	c, out := newTestConsole("\n  \nok\nok\n")
	secret, ok := c.newSecret("Password : ")
	if !ok || secret != "ok" {
		t.Fatalf("want ok, got %q (ok=%v)", secret, ok)
	}
	if n := strings.Count(out.String(), "The password cannot be empty."); n != 2 {
		t.Fatalf("want 2 empty-password messages, got %d:\n%s", n, out.String())
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("The Lord of the Rings", 10); got != "The Lor..." {
		t.Fatalf("got %q", got)
	}
	if got := truncateString("Dune", 10); got != "Dune" {
		t.Fatalf("got %q", got)
	}
	if got := truncateString("Ñandú Ñandú Ñandú", 8); got != "Ñandú..." {
		t.Fatalf("got %q", got)
	}
}
