//go:build !(rp2040 || rp2350)

package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return strings.TrimSpace(out.String())
}

func TestFrameAttach(t *testing.T) {
	got := execute(t, "frame", "attach", "--pin", "3", "--model", "dht11", "--interval", "2000")
	if got != "F0 66 01 03 00 50 0F F7" {
		t.Fatalf("got %q", got)
	}
}

func TestFrameDetachAndReport(t *testing.T) {
	if got := execute(t, "frame", "detach"); got != "F0 66 00 F7" {
		t.Fatalf("detach %q", got)
	}
	if got := execute(t, "frame", "report", "--celsius", "21.5", "--humidity", "40.25"); got != "F0 66 57 01 39 1F F7" {
		t.Fatalf("report %q", got)
	}
}

func TestDecode(t *testing.T) {
	got := execute(t, "decode", "F0665701391FF7", "F071", "44004800", "F7")
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %q", got)
	}
	if lines[0] != "report 21.5 °C 40.25 %RH" {
		t.Fatalf("line0 %q", lines[0])
	}
	if lines[1] != `string "DH" (error)` {
		t.Fatalf("line1 %q", lines[1])
	}
}
