package main

import (
	"strings"
	"testing"
)

func TestViolations(t *testing.T) {
	pkgs := []packageInfo{
		{ImportPath: module, Imports: []string{module + "/internal/net/proto", module + "/internal/routes"}},
		{ImportPath: module + "/internal/routes", Imports: []string{module + "/internal/geo", module}},
		{ImportPath: module + "/logging/playback", Imports: []string{module + "/logging", module}},
		{ImportPath: module + "/internal/net/ws", Imports: []string{module, module + "/internal/net/intake"}},
	}

	found := violations(pkgs, layering)
	if len(found) != 2 {
		t.Fatalf("expected 2 violations, got %v", found)
	}
	if found[0] != module+"/internal/routes -> "+module {
		t.Fatalf("unexpected first violation %q", found[0])
	}
	if !strings.HasPrefix(found[1], module+"/logging/playback -> ") {
		t.Fatalf("unexpected second violation %q", found[1])
	}
}

func TestDecodePackages(t *testing.T) {
	stream := `{"ImportPath":"a","Imports":["b"]}{"ImportPath":"b"}`
	pkgs, err := decodePackages(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(pkgs) != 2 || pkgs[0].Imports[0] != "b" {
		t.Fatalf("unexpected packages %+v", pkgs)
	}
}
