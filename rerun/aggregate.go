// Package rerun reruns the best hyperparameter configurations of every drug
// under stratified cross-validation and reports their generalisation.
package rerun

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
)

// Names of the four series of a rerun, in report order.
const (
	TestAUROC   = "test auroc"
	TestAUPRC   = "test auprc"
	ExternAUROC = "extern auroc"
	ExternAUPRC = "extern auprc"
)

// Series is a named list of per-fold scalars.
type Series struct {
	Name   string
	Values []float64
}

// Summary holds the statistics of one series.
type Summary struct {
	Name string
	Max  float64
	Min  float64
	Mean float64
	// Std is the population standard deviation.
	Std float64
}

// Aggregate computes max, min, mean and population standard deviation of
// every series, keeping their order.
func Aggregate(series []Series) ([]Summary, error) {
	summaries := make([]Summary, 0, len(series))
	for _, s := range series {
		data := stats.Float64Data(s.Values)
		hi, err := stats.Max(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		lo, err := stats.Min(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		mean, err := stats.Mean(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		std, err := stats.StandardDeviationPopulation(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		summaries = append(summaries, Summary{Name: s.Name, Max: hi, Min: lo, Mean: mean, Std: std})
	}
	return summaries, nil
}

// WriteSummary writes the aggregate block of one drug.
func WriteSummary(w io.Writer, drug string, summaries []Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\tMean Result for %s:\n\n", drug)
	for _, s := range summaries {
		fmt.Fprintf(&b, "\t\t%s max: %s\n", s.Name, formatFloat(s.Max))
		fmt.Fprintf(&b, "\t\t%s min: %s\n", s.Name, formatFloat(s.Min))
		fmt.Fprintf(&b, "\t\t%s mean: %s\n", s.Name, formatFloat(s.Mean))
		fmt.Fprintf(&b, "\t\t%s std: %s\n", s.Name, formatFloat(s.Std))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// NoSkillAUPRC is the AUPRC of a predictor without skill: the prevalence of
// the positive class.
func NoSkillAUPRC(labels []int) (float64, error) {
	positives, negatives := 0, 0
	for _, y := range labels {
		switch y {
		case 1:
			positives++
		case 0:
			negatives++
		}
	}
	if positives+negatives == 0 {
		return 0, fmt.Errorf("no binary labels")
	}
	return float64(positives) / float64(positives+negatives), nil
}

// formatFloat prints the shortest representation that round trips, always
// with a fractional part or exponent.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

func formatList(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
