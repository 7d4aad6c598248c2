package reload

import (
	"bufio"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic is one parsed compiler message. The verbatim compiler
// output is always kept alongside; diagnostics exist so editors can
// jump to the failing line, not to replace the message.
type Diagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// DiagnosticsFileName is the well-known file the controller maintains
// next to the watched source for editor integration. It holds the
// latest failed build's diagnostics and is removed on the next
// successful compile.
const DiagnosticsFileName = ".livegraph-errors.json"

// DiagnosticsFile is the persisted JSON shape.
type DiagnosticsFile struct {
	Build  int          `json:"build"`
	Source string       `json:"source"`
	Errors []Diagnostic `json:"errors"`
}

// Recognized compiler message shapes, most specific first:
//
//	clang/gcc:  file:line:col: severity: message
//	msvc:       file(line): severity C1234: message
//	go:         file.go:line:col: message
var (
	gccDiagPattern  = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s+(error|warning|note):\s+(.*)$`)
	msvcDiagPattern = regexp.MustCompile(`^(.+?)\((\d+)\):\s+(error|warning)\s+\w+:\s+(.*)$`)
	goDiagPattern   = regexp.MustCompile(`^(.+?\.go):(\d+):(\d+):\s+(.*)$`)
)

// ParseDiagnostics extracts structured messages from combined compiler
// output. Lines that match no known shape are skipped; Go compiler
// lines carry no severity marker and are classified as errors.
func ParseDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := gccDiagPattern.FindStringSubmatch(line); m != nil {
			diags = append(diags, Diagnostic{
				File:     m[1],
				Line:     mustAtoi(m[2]),
				Column:   mustAtoi(m[3]),
				Severity: m[4],
				Message:  m[5],
			})
			continue
		}
		if m := msvcDiagPattern.FindStringSubmatch(line); m != nil {
			diags = append(diags, Diagnostic{
				File:     m[1],
				Line:     mustAtoi(m[2]),
				Severity: m[3],
				Message:  m[4],
			})
			continue
		}
		if m := goDiagPattern.FindStringSubmatch(line); m != nil {
			diags = append(diags, Diagnostic{
				File:     m[1],
				Line:     mustAtoi(m[2]),
				Column:   mustAtoi(m[3]),
				Severity: "error",
				Message:  m[4],
			})
		}
	}
	return diags
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s) // the pattern guarantees digits
	return n
}

// WriteDiagnostics persists a failed build's diagnostics for editors.
func WriteDiagnostics(path string, build int, source string, diags []Diagnostic) error {
	if diags == nil {
		diags = []Diagnostic{}
	}
	data, err := json.MarshalIndent(DiagnosticsFile{
		Build:  build,
		Source: source,
		Errors: diags,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadDiagnostics loads a persisted diagnostics file.
func ReadDiagnostics(path string) (DiagnosticsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DiagnosticsFile{}, err
	}
	var f DiagnosticsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return DiagnosticsFile{}, err
	}
	return f, nil
}

// ClearDiagnostics removes the diagnostics file after a successful
// compile. A missing file is not an error.
func ClearDiagnostics(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
