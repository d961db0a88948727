package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wesamahakem/gauntlet/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one matrix run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one test pair.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure represents a validation failure.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a backend invocation error.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a run summary to JUnit XML format. Pairs whose
// failure carries a captured backend error map to <error>; ordinary
// validation failures map to <failure>.
func ConvertToJUnit(s *Summary) *JUnitTestSuites {
	durationSec := float64(s.DurationMs) / 1000.0

	failures, errorCount := 0, 0
	suite := JUnitTestSuite{
		Name:      s.SuiteName,
		Tests:     s.Total,
		Time:      durationSec,
		Timestamp: s.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "cache_hits", Value: fmt.Sprintf("%d", s.CacheHits)},
		},
	}

	for i := range s.Results {
		r := &s.Results[i]
		tc := JUnitTestCase{
			Name:      fmt.Sprintf("%s[%s]", r.Scenario, r.Runner),
			Classname: r.Model,
			Time:      float64(r.DurationMs) / 1000.0,
		}
		if r.Status != models.StatusPassed {
			if r.HasFatalError() {
				errorCount++
				tc.Error = &JUnitError{
					Message: r.Errors[0],
					Type:    "BackendError",
					Body:    strings.Join(r.Errors, "\n"),
				}
			} else {
				failures++
				tc.Failure = &JUnitFailure{
					Message: fmt.Sprintf("%s: %d/%d rules passed", r.PairID, r.PassedValidations(), len(r.Validations)),
					Type:    "ValidationFailure",
					Body:    formatFailedRules(r.Validations),
				}
			}
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	suite.Failures = failures
	suite.Errors = errorCount

	return &JUnitTestSuites{
		Tests:      s.Total,
		Failures:   failures,
		Errors:     errorCount,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func formatFailedRules(validations []models.ValidationOutcome) string {
	var b strings.Builder
	for _, v := range validations {
		if v.Passed {
			continue
		}
		fmt.Fprintf(&b, "[FAIL] turn %d: %s", v.Turn+1, v.Label)
		if v.Message != "" {
			fmt.Fprintf(&b, " (%s)", v.Message)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(s *Summary, path string) error {
	suites := ConvertToJUnit(s)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
