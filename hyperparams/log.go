package hyperparams

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// Marker introduces a hyperparameter record on a log line.
const Marker = "best_parameters"

// ConfigParseError reports a log line whose record could not be read.
type ConfigParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("%s:%d: cannot parse %s record: %v", e.File, e.Line, Marker, e.Err)
}

func (e *ConfigParseError) Unwrap() error {
	return e.Err
}

// ReadLog returns the records of every marker line in file order. The first
// unreadable record aborts the read.
func ReadLog(r io.Reader, name string) ([]Params, error) {
	var records []Params
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		idx := strings.Index(text, Marker)
		if idx < 0 {
			continue
		}
		p, err := parseRecord(text[idx+len(Marker):])
		if err != nil {
			return nil, &ConfigParseError{File: name, Line: line, Text: text, Err: err}
		}
		records = append(records, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return records, nil
}

// LoadLog reads the records of a log file.
func LoadLog(fs afero.Fs, path string) ([]Params, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hyperparameter log: %w", err)
	}
	defer f.Close()
	return ReadLog(f, path)
}

func parseRecord(rest string) (Params, error) {
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return Params{}, fmt.Errorf("missing '=' after %s", Marker)
	}
	if strings.TrimSpace(rest[:eq]) != "" {
		return Params{}, fmt.Errorf("unexpected text %q before '='", strings.TrimSpace(rest[:eq]))
	}
	m, err := ParseMapping(rest[eq+1:])
	if err != nil {
		return Params{}, err
	}
	return FromMapping(m)
}
