package omics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"
)

// Table is an omics matrix with named rows (samples) and columns (features).
type Table struct {
	Samples  []string
	Features []string
	Data     *mat.Dense
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	return reader
}

// parseNumber reads a float written with either a decimal point or a
// decimal comma.
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
}

// ReadTable reads a feature-by-sample TSV: the header names the samples and
// every other row starts with a feature name. The result is transposed to
// one row per sample.
func ReadTable(r io.Reader) (*Table, error) {
	records, err := newReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("table needs a header and at least one feature row, got %d rows", len(records))
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("header names no samples")
	}
	samples := append([]string(nil), header[1:]...)
	features := make([]string, 0, len(records)-1)
	data := mat.NewDense(len(samples), len(records)-1, nil)

	for j, row := range records[1:] {
		line := j + 2
		if len(row) != len(header) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(row), len(header))
		}
		features = append(features, row[0])
		for i, field := range row[1:] {
			v, err := parseNumber(field)
			if err != nil {
				return nil, fmt.Errorf("line %d, sample %q: %w", line, samples[i], err)
			}
			data.Set(i, j, v)
		}
	}
	return &Table{Samples: samples, Features: features, Data: data}, nil
}

// ReadResponse reads a two-column sample/response TSV with a header row.
// Responses are 0/1, or S (sensitive, 1) and R (resistant, 0).
func ReadResponse(r io.Reader) (samples []string, labels []int, err error) {
	records, err := newReader(r).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read tsv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("response file has no samples")
	}
	for k, row := range records[1:] {
		line := k + 2
		if len(row) < 2 {
			return nil, nil, fmt.Errorf("line %d: want sample and response, got %d fields", line, len(row))
		}
		var y int
		switch v := strings.TrimSpace(row[1]); v {
		case "1", "S":
			y = 1
		case "0", "R":
			y = 0
		default:
			f, err := parseNumber(v)
			if err != nil || (f != 0 && f != 1) {
				return nil, nil, fmt.Errorf("line %d: response %q is not binary", line, v)
			}
			y = int(f)
		}
		samples = append(samples, row[0])
		labels = append(labels, y)
	}
	return samples, labels, nil
}

func readTableFile(fs afero.Fs, path string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func readResponseFile(fs afero.Fs, path string) ([]string, []int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	samples, labels, err := ReadResponse(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, labels, nil
}

// selectSamples returns the rows of t for the given sample names in order.
func (t *Table) selectSamples(names []string) (*mat.Dense, error) {
	index := make(map[string]int, len(t.Samples))
	for i, s := range t.Samples {
		index[s] = i
	}
	_, cols := t.Data.Dims()
	out := mat.NewDense(len(names), cols, nil)
	for k, name := range names {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("sample %q is missing", name)
		}
		out.SetRow(k, t.Data.RawRowView(i))
	}
	return out, nil
}

// featureColumns maps feature names to column indices of t.
func (t *Table) featureColumns(names []string) ([]int, error) {
	index := make(map[string]int, len(t.Features))
	for j, f := range t.Features {
		index[f] = j
	}
	cols := make([]int, len(names))
	for k, name := range names {
		j, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("feature %q is missing", name)
		}
		cols[k] = j
	}
	return cols, nil
}
