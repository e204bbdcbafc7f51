package scenario

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Scenario is one unit of work extracted from the scenario list. Scenarios are
// created during parsing and immutable afterwards.
type Scenario struct {
	// Index is the zero-based position in source order.
	Index int
	// Number is the scenario's own numbering from the source ("3" or "2.1").
	Number string
	// Title is the heading text after the number marker.
	Title string
	// Body is the raw markdown between this scenario's heading and the next.
	Body string
}

// DisplayTitle returns the "Number) Title" form used in the index file and
// the master report section headers.
func (s Scenario) DisplayTitle() string {
	return strings.TrimSpace(fmt.Sprintf("%s) %s", s.Number, s.Title))
}

// ParseError indicates the scenario source was missing, unreadable, or
// contained no recognizable scenario headings. It is fatal: no agent call
// may be made after a ParseError.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing scenarios from %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// headingRe matches scenario headings of the form "1) Title" or "2.3) Title".
var headingRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\)\s+(.+?)\s*$`)

// Parse reads a markdown scenario list and returns the scenarios in source
// order. A scenario begins at any ATX heading whose text matches the
// "N) Title" convention; everything up to the next such heading is its body.
func Parse(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	scenarios, err := ParseBytes(data)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return scenarios, nil
}

// ParseBytes parses a markdown scenario list from memory.
func ParseBytes(source []byte) ([]Scenario, error) {
	type marker struct {
		number    string
		title     string
		bodyStart int // byte offset just past the heading line
		lineStart int // byte offset of the heading line itself
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var markers []marker

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}

		seg := heading.Lines().At(0)
		match := headingRe.FindSubmatch(bytes.TrimSpace(source[seg.Start:seg.Stop]))
		if match == nil {
			// Non-scenario headings (document title, notes) fall into the
			// body of whatever scenario is open.
			return ast.WalkContinue, nil
		}

		markers = append(markers, marker{
			number:    string(match[1]),
			title:     string(match[2]),
			bodyStart: lineEnd(source, seg.Stop),
			lineStart: lineStart(source, seg.Start),
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}

	if len(markers) == 0 {
		return nil, fmt.Errorf("no numbered scenario headings found")
	}

	scenarios := make([]Scenario, 0, len(markers))
	for i, m := range markers {
		end := len(source)
		if i+1 < len(markers) {
			end = markers[i+1].lineStart
		}
		body := strings.TrimSpace(string(source[m.bodyStart:end]))

		scenarios = append(scenarios, Scenario{
			Index:  i,
			Number: NormalizeASCII(m.number),
			Title:  NormalizeASCII(m.title),
			Body:   NormalizeASCII(body),
		})
	}

	return scenarios, nil
}

// lineStart returns the byte offset of the start of the line containing pos.
func lineStart(source []byte, pos int) int {
	return bytes.LastIndexByte(source[:pos], '\n') + 1
}

// lineEnd returns the byte offset just past the newline that terminates the
// line containing pos, or len(source) when pos is on the last line.
func lineEnd(source []byte, pos int) int {
	i := bytes.IndexByte(source[pos:], '\n')
	if i < 0 {
		return len(source)
	}
	return pos + i + 1
}

// OutputFilename returns the deterministic per-scenario output filename.
// Filenames are 1-based so they read naturally in a directory listing.
func OutputFilename(index int) string {
	return fmt.Sprintf("scenario_%03d.md", index+1)
}

// WriteIndex writes the plain-text scenario index, one display title per
// line, for human inspection of what was parsed.
func WriteIndex(scenarios []Scenario, path string) error {
	var b strings.Builder
	for _, s := range scenarios {
		b.WriteString(s.DisplayTitle())
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing scenario index: %w", err)
	}
	return nil
}
