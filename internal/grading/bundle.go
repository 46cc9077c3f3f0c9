package grading

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/syllabus/internal/domain"
)

// Bundle layout.
const (
	EntryFile        = "Main.java"
	TestDir          = "test"
	RunnerPath       = "lib/junit-platform-console-standalone.jar"
	RunScript        = "run"
	DefaultTestClass = "MainTest"

	// RunnerAsset is the asset-store name of the JUnit console launcher.
	RunnerAsset = "junit-platform-console-standalone.jar"
)

var classNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// HarnessClass returns the harness class name, defaulting to MainTest.
func HarnessClass(tc domain.TestCase) (string, error) {
	name := strings.TrimSpace(tc.ClassName)
	if name == "" {
		return DefaultTestClass, nil
	}
	if !classNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: invalid harness class name %q", domain.ErrInvalidInput, name)
	}
	return name, nil
}

// buildRunScript compiles the entry file and harness against the runner,
// then runs the harness class with a tree report. A compile failure exits
// non-zero; a run where tests failed exits zero so the report is kept.
func buildRunScript(className string) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("mkdir -p out\n")
	fmt.Fprintf(&b, "javac -d out -cp %s %s %s/%s.java || exit 1\n", RunnerPath, EntryFile, TestDir, className)
	fmt.Fprintf(&b, "java -jar %s --disable-banner --class-path out --select-class %s --details=tree\n", RunnerPath, className)
	b.WriteString("status=$?\n")
	b.WriteString("if [ \"$status\" -eq 1 ]; then exit 0; fi\n")
	b.WriteString("exit $status\n")
	return b.String()
}

// BuildBundle zips the learner code, harness, runner jar and run script
// into a multi-file submission archive.
func BuildBundle(code string, harness domain.TestCase, runner []byte) ([]byte, error) {
	if !harness.IsHarness() {
		return nil, domain.ErrMissingHarness
	}
	className, err := HarnessClass(harness)
	if err != nil {
		return nil, err
	}

	entries := []struct {
		name string
		data []byte
	}{
		{EntryFile, []byte(code)},
		{TestDir + "/" + className + ".java", []byte(harness.HarnessFile)},
		{RunnerPath, runner},
		{RunScript, []byte(buildRunScript(className))},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.name == RunScript {
			hdr.SetMode(0o755)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close bundle: %w", err)
	}
	return buf.Bytes(), nil
}
