package main

import "testing"

func TestParseServeFlagsDefaults(t *testing.T) {
	opts, err := parseServeFlags(nil)
	if err != nil {
		t.Fatalf("parseServeFlags: %v", err)
	}
	if opts.cfg.Root != ".site2ts" {
		t.Fatalf("root = %q", opts.cfg.Root)
	}
	if len(opts.cfg.Worker.Command) == 0 {
		t.Fatal("worker command is empty")
	}
	if opts.cfg.API.Listen != "" {
		t.Fatalf("api should be disabled by default, got %q", opts.cfg.API.Listen)
	}
}

func TestParseServeFlagsOverrides(t *testing.T) {
	opts, err := parseServeFlags([]string{
		"--root", ".elsewhere",
		"--worker", "node dist/worker.js --trace",
		"--listen", "127.0.0.1:7333",
		"--log-level", "DEBUG",
	})
	if err != nil {
		t.Fatalf("parseServeFlags: %v", err)
	}
	if opts.cfg.Root != ".elsewhere" {
		t.Fatalf("root = %q", opts.cfg.Root)
	}
	want := []string{"node", "dist/worker.js", "--trace"}
	if len(opts.cfg.Worker.Command) != len(want) {
		t.Fatalf("worker command = %v", opts.cfg.Worker.Command)
	}
	for i, arg := range want {
		if opts.cfg.Worker.Command[i] != arg {
			t.Fatalf("worker command[%d] = %q, want %q", i, opts.cfg.Worker.Command[i], arg)
		}
	}
	if opts.cfg.API.Listen != "127.0.0.1:7333" {
		t.Fatalf("listen = %q", opts.cfg.API.Listen)
	}
	if opts.cfg.LogLevel != "DEBUG" {
		t.Fatalf("log level = %q", opts.cfg.LogLevel)
	}
}

func TestParseServeFlagsBadFlag(t *testing.T) {
	if _, err := parseServeFlags([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
