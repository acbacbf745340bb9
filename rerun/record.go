package rerun

import (
	"fmt"
	"io"
	"strings"
)

// Record is the outcome of rerunning one drug.
type Record struct {
	Drug   string
	Extern string
	// Series holds the test and external metrics in report order.
	Series       []Series
	Summaries    []Summary
	NoSkillAUPRC float64
}

func newRecord(drug, extern string) *Record {
	return &Record{
		Drug:   drug,
		Extern: extern,
		Series: []Series{
			{Name: TestAUROC},
			{Name: TestAUPRC},
			{Name: ExternAUROC},
			{Name: ExternAUPRC},
		},
	}
}

// Values returns the series with the given name.
func (r *Record) Values(name string) []float64 {
	for _, s := range r.Series {
		if s.Name == name {
			return s.Values
		}
	}
	return nil
}

func (r *Record) add(name string, v float64) {
	for i := range r.Series {
		if r.Series[i].Name == name {
			r.Series[i].Values = append(r.Series[i].Values, v)
			return
		}
	}
}

// Folds returns the number of completed folds.
func (r *Record) Folds() int {
	return len(r.Values(TestAUROC))
}

// writeTail writes the no-skill baseline and the raw lists.
func (r *Record) writeTail(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n No skill predictor extern AUPRC: %s \n", formatFloat(r.NoSkillAUPRC))
	for _, s := range r.Series {
		fmt.Fprintf(&b, "\n %s list: %s \n", s.Name, formatList(s.Values))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
