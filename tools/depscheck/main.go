package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages matching From from importing anything under Forbidden.
// Allowed lists exceptions inside Forbidden.
type rule struct {
	From      string
	Forbidden string
	Allowed   []string
}

const module = "routesim/server"

var layering = []rule{
	// The engine sees only the wire format of the transport layer.
	{From: module, Forbidden: module + "/internal/net", Allowed: []string{module + "/internal/net/proto"}},
	// Storage must stay usable without the engine.
	{From: module + "/internal/routes", Forbidden: module, Allowed: []string{module + "/internal/geo"}},
	{From: module + "/internal/geo", Forbidden: module},
	// Event helpers never reach back into the engine.
	{From: module + "/logging", Forbidden: module, Allowed: []string{module + "/logging"}},
	{From: module + "/internal/net/proto", Forbidden: module, Allowed: []string{module + "/internal/geo"}},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	pkgs, err := decodePackages(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if found := violations(pkgs, layering); len(found) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range found {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return pkgs, nil
			}
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
}

func violations(pkgs []packageInfo, rules []rule) []string {
	var found []string
	for _, pkg := range pkgs {
		for _, r := range rules {
			if !within(pkg.ImportPath, r.From) || !exact(pkg.ImportPath, r) {
				continue
			}
			for _, imp := range pkg.Imports {
				if within(imp, r.Forbidden) && !allowed(imp, r.Allowed) {
					found = append(found, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	sort.Strings(found)
	return found
}

// exact limits the root package rule to the root package itself; every other
// rule covers the whole subtree.
func exact(path string, r rule) bool {
	if r.From == module {
		return path == module
	}
	return true
}

func within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func allowed(path string, exceptions []string) bool {
	for _, e := range exceptions {
		if within(path, e) {
			return true
		}
	}
	return false
}
