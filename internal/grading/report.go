package grading

import (
	"bufio"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ReportParser turns a test runner's raw output into per-test outcomes.
type ReportParser interface {
	ParseReport(raw string) []TestOutcome
}

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	passedPattern   = regexp.MustCompile(`(?i)(\w+)\(\)\s*(?:✔|\[OK\])`)
	failedPattern   = regexp.MustCompile(`(?i)(\w+)\(\)\s*(?:✘|\[X\])`)
	expectedPattern = regexp.MustCompile(`expected:?\s*<(.+?)>\s*but was:?\s*<(.+?)>`)
	assertPattern   = regexp.MustCompile(`AssertionFailedError:\s*(.+)`)
	camelPattern    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	acronymPattern  = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
)

// JUnitTreeParser reads the JUnit console launcher's --details=tree report.
type JUnitTreeParser struct{}

// ParseReport extracts one outcome per test line. Failed tests share the
// first assertion message found anywhere in the output.
func (JUnitTreeParser) ParseReport(raw string) []TestOutcome {
	clean := StripANSI(raw)
	outcomes := []TestOutcome{}
	message, haveMessage := "", false

	scanner := bufio.NewScanner(strings.NewReader(clean))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := passedPattern.FindStringSubmatch(line); m != nil {
			outcomes = append(outcomes, TestOutcome{Test: HumanizeTestName(m[1]), Status: OutcomePassed})
			continue
		}
		if m := failedPattern.FindStringSubmatch(line); m != nil {
			if !haveMessage {
				message, haveMessage = failureMessage(clean), true
			}
			outcomes = append(outcomes, TestOutcome{Test: HumanizeTestName(m[1]), Status: OutcomeFailed, Message: message})
		}
	}
	return outcomes
}

// StripANSI removes terminal escape sequences.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// HumanizeTestName turns testAddsTwoNumbers into "Adds Two Numbers". An
// acronym stays whole: testURLIsValid becomes "URL Is Valid".
func HumanizeTestName(name string) string {
	trimmed := strings.TrimPrefix(name, "test")
	if trimmed == "" {
		trimmed = name
	}
	spaced := acronymPattern.ReplaceAllString(trimmed, "$1 $2")
	spaced = camelPattern.ReplaceAllString(spaced, "$1 $2")

	r, size := utf8.DecodeRuneInString(spaced)
	return string(unicode.ToUpper(r)) + spaced[size:]
}

func failureMessage(output string) string {
	if m := expectedPattern.FindStringSubmatch(output); m != nil {
		return "Expected: " + m[1] + "\nActual: " + m[2]
	}
	if m := assertPattern.FindStringSubmatch(output); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
