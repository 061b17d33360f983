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

const modulePrefix = "otogi-helpnav/"

// layerRule forbids packages under importer from importing anything under
// forbidden. Paths are relative to the module root.
type layerRule struct {
	importer  string
	forbidden string
	reason    string
}

var layerRules = []layerRule{
	{importer: "pkg/otogi", forbidden: "internal/", reason: "pkg/otogi must not import internal/*"},
	{importer: "pkg/otogi", forbidden: "modules/", reason: "pkg/otogi must not import modules/*"},
	{importer: "internal/kernel", forbidden: "internal/driver", reason: "internal/kernel must not import internal/driver/*"},
	{importer: "internal/driver", forbidden: "modules/", reason: "drivers must not import modules/*"},
	{importer: "modules/", forbidden: "internal/", reason: "modules/* must not import internal/*"},
	{importer: "modules/", forbidden: "cmd/", reason: "modules/* must not import cmd/*"},
}

type listedPackage struct {
	ImportPath   string
	Imports      []string
	TestImports  []string
	XTestImports []string
}

func main() {
	packages, err := listPackages()
	if err != nil {
		fmt.Fprintf(os.Stderr, "arch-check: %v\n", err)
		os.Exit(1)
	}

	violations := collectViolations(packages)
	if len(violations) == 0 {
		_, _ = fmt.Fprintf(os.Stdout, "arch-check: passed\n")
		return
	}

	_, _ = fmt.Fprintf(os.Stdout, "arch-check: architecture violations:\n")
	for _, violation := range violations {
		_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", violation)
	}
	os.Exit(1)
}

func listPackages() ([]listedPackage, error) {
	cmd := exec.Command("go", "list", "-json", "-test", "./...")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("go list -json -test ./...: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(stdout.Bytes()))
	result := make([]listedPackage, 0, 64)
	for {
		var pkg listedPackage
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode go list output: %w", err)
		}
		if pkg.ImportPath == "" {
			continue
		}
		result = append(result, pkg)
	}

	return result, nil
}

func collectViolations(packages []listedPackage) []string {
	found := make(map[string]struct{})

	for _, pkg := range packages {
		imports := append([]string{}, pkg.Imports...)
		imports = append(imports, pkg.TestImports...)
		imports = append(imports, pkg.XTestImports...)

		for _, imported := range imports {
			reason := violationReason(pkg.ImportPath, imported)
			if reason == "" {
				continue
			}
			entry := fmt.Sprintf("%s -> %s (%s)", pkg.ImportPath, imported, reason)
			found[entry] = struct{}{}
		}
	}

	violations := make([]string, 0, len(found))
	for violation := range found {
		violations = append(violations, violation)
	}
	sort.Strings(violations)

	return violations
}

func violationReason(importer, imported string) string {
	for _, rule := range layerRules {
		if strings.HasPrefix(importer, modulePrefix+rule.importer) &&
			strings.HasPrefix(imported, modulePrefix+rule.forbidden) {
			return rule.reason
		}
	}

	if module, ok := moduleName(importer); ok {
		if other, isModule := moduleName(imported); isModule && other != module {
			return "modules/* must not import sibling modules"
		}
	}

	return ""
}

// moduleName returns the first path element below modules/.
func moduleName(importPath string) (string, bool) {
	rest, ok := strings.CutPrefix(importPath, modulePrefix+"modules/")
	if !ok || rest == "" {
		return "", false
	}
	name, _, _ := strings.Cut(rest, "/")

	return name, true
}
