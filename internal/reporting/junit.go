package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/interllm/interllm/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one scenario run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one scenario.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a scenario that did not produce its output.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a scenario skipped because its output already existed.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a run manifest to JUnit XML format, letting CI
// systems surface per-scenario outcomes natively.
func ConvertToJUnit(manifest *models.RunManifest, durationMs int64) *JUnitTestSuites {
	durationSec := float64(durationMs) / 1000.0
	_, failed, skipped := manifest.Counts()

	suite := JUnitTestSuite{
		Name:      manifest.Source,
		Tests:     len(manifest.Scenarios),
		Failures:  failed,
		Skipped:   skipped,
		Time:      durationSec,
		Timestamp: manifest.GeneratedAt.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "model", Value: manifest.Model},
			{Name: "output_dir", Value: manifest.OutputDir},
		},
	}

	for _, r := range manifest.Scenarios {
		suite.TestCases = append(suite.TestCases, convertScenarioResult(manifest.Source, r))
	}

	return &JUnitTestSuites{
		Tests:      len(manifest.Scenarios),
		Failures:   failed,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertScenarioResult(source string, r models.ScenarioResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      fmt.Sprintf("%s) %s", r.Number, r.Title),
		Classname: source,
		Time:      float64(r.DurationMs) / 1000.0,
	}

	switch r.Status {
	case models.StatusFailed:
		msg := r.Error
		if msg == "" {
			msg = "scenario failed"
		}
		tc.Failure = &JUnitFailure{
			Message: msg,
			Type:    "ScenarioFailure",
			Body:    fmt.Sprintf("expected output file: %s", r.OutputFile),
		}
	case models.StatusSkipped:
		tc.Skipped = &JUnitSkipped{Message: "output file already exists"}
	}

	return tc
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(manifest *models.RunManifest, durationMs int64, path string) error {
	suites := ConvertToJUnit(manifest, durationMs)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
