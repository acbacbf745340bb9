// Package dataset holds the multi-omics sample matrices and the preprocessing,
// sampling and batching used to train on them.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Modality identifies one omic data type.
type Modality int

const (
	Expression Modality = iota
	Mutation
	CNA
)

// Modalities lists every modality in encoder order.
var Modalities = []Modality{Expression, Mutation, CNA}

func (m Modality) String() string {
	switch m {
	case Expression:
		return "expression"
	case Mutation:
		return "mutation"
	case CNA:
		return "cna"
	default:
		return "unknown"
	}
}

// Cohort is a set of samples measured on all three modalities with a binary
// drug response. Row i of every matrix and Response[i] describe the same sample.
type Cohort struct {
	Expression *mat.Dense
	Mutation   *mat.Dense
	CNA        *mat.Dense
	Response   []int
}

// NewCohort validates the matrices and returns the cohort.
func NewCohort(expression, mutation, cna *mat.Dense, response []int) (*Cohort, error) {
	c := &Cohort{Expression: expression, Mutation: mutation, CNA: cna, Response: response}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that all matrices and the response share one row order.
func (c *Cohort) Validate() error {
	n := len(c.Response)
	if n == 0 {
		return fmt.Errorf("cohort has no samples")
	}
	for _, m := range Modalities {
		x := c.Matrix(m)
		if x == nil {
			return fmt.Errorf("cohort is missing the %s matrix", m)
		}
		if r, _ := x.Dims(); r != n {
			return fmt.Errorf("%s matrix has %d rows, response has %d", m, r, n)
		}
	}
	for i, y := range c.Response {
		if y != 0 && y != 1 {
			return fmt.Errorf("response %d of sample %d is not binary", y, i)
		}
	}
	return nil
}

func (c *Cohort) Len() int {
	return len(c.Response)
}

// Matrix returns the matrix of one modality.
func (c *Cohort) Matrix(m Modality) *mat.Dense {
	switch m {
	case Expression:
		return c.Expression
	case Mutation:
		return c.Mutation
	case CNA:
		return c.CNA
	default:
		return nil
	}
}

// Features returns the number of columns of one modality.
func (c *Cohort) Features(m Modality) int {
	_, cols := c.Matrix(m).Dims()
	return cols
}

// Subset copies the given rows into a new cohort, keeping their order.
func (c *Cohort) Subset(indices []int) (*Cohort, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("subset requires at least one index")
	}
	for _, i := range indices {
		if i < 0 || i >= c.Len() {
			return nil, fmt.Errorf("sample index %d out of range [0, %d)", i, c.Len())
		}
	}
	response := make([]int, len(indices))
	for k, i := range indices {
		response[k] = c.Response[i]
	}
	return &Cohort{
		Expression: selectRows(c.Expression, indices),
		Mutation:   selectRows(c.Mutation, indices),
		CNA:        selectRows(c.CNA, indices),
		Response:   response,
	}, nil
}

// ClassCounts returns the number of negative and positive samples.
func (c *Cohort) ClassCounts() (negatives, positives int) {
	for _, y := range c.Response {
		if y == 1 {
			positives++
		} else {
			negatives++
		}
	}
	return negatives, positives
}

func selectRows(m *mat.Dense, indices []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for k, i := range indices {
		out.SetRow(k, m.RawRowView(i))
	}
	return out
}
