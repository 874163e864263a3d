package suites

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResult is a parser's reading of a finished suite command.
type ParseResult struct {
	Passed bool
	Notes  string
}

// Parser converts raw command output into a ParseResult.
type Parser interface {
	Parse(stdout string, stderr string, exitCode int) ParseResult
}

// GenericParser judges by exit code and keeps the output tail on failure.
type GenericParser struct{}

// maxNotesLen caps how much output is kept in a suite's notes.
const maxNotesLen = 2000

func (p *GenericParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	if exitCode == 0 {
		return ParseResult{Passed: true}
	}
	combined := strings.TrimSpace(stdout)
	if s := strings.TrimSpace(stderr); s != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += s
	}
	return ParseResult{
		Passed: false,
		Notes:  fmt.Sprintf("exit code %d\n%s", exitCode, tail(combined, maxNotesLen)),
	}
}

// tail keeps the last n bytes of s; errors are usually at the end.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…(truncated)\n" + s[len(s)-n:]
}

// VitestParser reads vitest/jest JSON reporter output.
type VitestParser struct{}

type vitestOutput struct {
	NumTotalTests   int                 `json:"numTotalTests"`
	NumPassedTests  int                 `json:"numPassedTests"`
	NumFailedTests  int                 `json:"numFailedTests"`
	NumPendingTests int                 `json:"numPendingTests"`
	TestResults     []vitestSuiteResult `json:"testResults"`
}

type vitestSuiteResult struct {
	Name             string                  `json:"name"`
	AssertionResults []vitestAssertionResult `json:"assertionResults"`
}

type vitestAssertionResult struct {
	FullName string `json:"fullName"`
	Status   string `json:"status"`
}

// maxFailedNames bounds how many failing tests are listed in notes.
const maxFailedNames = 5

func (p *VitestParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	var raw vitestOutput
	if err := json.Unmarshal([]byte(jsonObject(stdout)), &raw); err != nil {
		res := (&GenericParser{}).Parse(stdout, stderr, exitCode)
		if res.Notes != "" {
			res.Notes = "could not parse test JSON; " + res.Notes
		}
		return res
	}

	var failed []string
	for _, suite := range raw.TestResults {
		for _, a := range suite.AssertionResults {
			if a.Status == "failed" {
				failed = append(failed, a.FullName)
			}
		}
	}

	notes := fmt.Sprintf("%d passed, %d failed, %d skipped out of %d",
		raw.NumPassedTests, raw.NumFailedTests, raw.NumPendingTests, raw.NumTotalTests)
	if len(failed) > 0 {
		shown := failed
		if len(shown) > maxFailedNames {
			shown = shown[:maxFailedNames]
		}
		notes += "\nfailed: " + strings.Join(shown, "; ")
		if extra := len(failed) - len(shown); extra > 0 {
			notes += fmt.Sprintf(" (+%d more)", extra)
		}
	}
	return ParseResult{
		Passed: exitCode == 0 && raw.NumFailedTests == 0,
		Notes:  notes,
	}
}

// jsonObject strips any log lines printed before the reporter's JSON.
func jsonObject(s string) string {
	if i := strings.Index(s, "{"); i > 0 {
		return s[i:]
	}
	return s
}
