// Package omics loads the internal and external drug-response cohorts.
package omics

import (
	"fmt"
	"path"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tsawler/go-moli/dataset"
)

// Loader provides the cohorts of one drug: the internal cohort used for
// cross-validation and the external cohort it is validated on.
type Loader interface {
	LoadDrugData(drug, extern string) (internal, external *dataset.Cohort, err error)
}

// File names of one cohort directory.
var fileNames = map[dataset.Modality]string{
	dataset.Expression: "expression.tsv",
	dataset.Mutation:   "mutation.tsv",
	dataset.CNA:        "cna.tsv",
}

const responseFile = "response.tsv"

// TSVLoader reads <Root>/<drug>/*.tsv for the internal cohort and
// <Root>/<drug>/<extern>/*.tsv for the external one. Features are selected
// by variance on the internal cohort and the external cohort is restricted to
// the same features.
type TSVLoader struct {
	Fs         afero.Fs
	Root       string
	Thresholds map[dataset.Modality]float64
	Logger     *zap.Logger
}

// NewTSVLoader creates a loader with the default variance thresholds.
func NewTSVLoader(fs afero.Fs, root string, logger *zap.Logger) *TSVLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TSVLoader{
		Fs:   fs,
		Root: root,
		Thresholds: map[dataset.Modality]float64{
			dataset.Expression: dataset.ExpressionVarianceThreshold,
			dataset.Mutation:   dataset.MutationVarianceThreshold,
			dataset.CNA:        dataset.CNAVarianceThreshold,
		},
		Logger: logger,
	}
}

type rawCohort struct {
	tables   map[dataset.Modality]*Table
	samples  []string
	response []int
}

func (l *TSVLoader) readCohort(dir string) (*rawCohort, error) {
	raw := &rawCohort{tables: make(map[dataset.Modality]*Table, len(fileNames))}
	for _, m := range dataset.Modalities {
		t, err := readTableFile(l.Fs, path.Join(dir, fileNames[m]))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", m, err)
		}
		raw.tables[m] = t
	}
	samples, response, err := readResponseFile(l.Fs, path.Join(dir, responseFile))
	if err != nil {
		return nil, fmt.Errorf("load response: %w", err)
	}
	raw.samples, raw.response = samples, response
	return raw, nil
}

// assemble orders every modality by the response samples, keeping the given
// features.
func (raw *rawCohort) assemble(features map[dataset.Modality][]string) (*dataset.Cohort, error) {
	selected := make(map[dataset.Modality][]int, len(dataset.Modalities))
	for _, m := range dataset.Modalities {
		cols, err := raw.tables[m].featureColumns(features[m])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		selected[m] = cols
	}

	var cohort dataset.Cohort
	for _, m := range dataset.Modalities {
		rows, err := raw.tables[m].selectSamples(raw.samples)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		x, err := dataset.SelectColumns(rows, selected[m])
		if err != nil {
			return nil, err
		}
		switch m {
		case dataset.Expression:
			cohort.Expression = x
		case dataset.Mutation:
			cohort.Mutation = x
		case dataset.CNA:
			cohort.CNA = x
		}
	}
	cohort.Response = raw.response
	if err := cohort.Validate(); err != nil {
		return nil, err
	}
	return &cohort, nil
}

// LoadDrugData implements Loader.
func (l *TSVLoader) LoadDrugData(drug, extern string) (*dataset.Cohort, *dataset.Cohort, error) {
	dir := path.Join(l.Root, drug)
	internalRaw, err := l.readCohort(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("internal cohort of %s: %w", drug, err)
	}
	externalRaw, err := l.readCohort(path.Join(dir, extern))
	if err != nil {
		return nil, nil, fmt.Errorf("%s cohort of %s: %w", extern, drug, err)
	}

	features := make(map[dataset.Modality][]string, len(dataset.Modalities))
	for _, m := range dataset.Modalities {
		t := internalRaw.tables[m]
		rows, err := t.selectSamples(internalRaw.samples)
		if err != nil {
			return nil, nil, fmt.Errorf("internal %s: %w", m, err)
		}
		selector := dataset.VarianceThreshold{Threshold: l.Thresholds[m]}
		if err := selector.Fit(rows); err != nil {
			return nil, nil, fmt.Errorf("internal %s: %w", m, err)
		}
		for _, j := range selector.Support() {
			features[m] = append(features[m], t.Features[j])
		}
		l.Logger.Debug("selected features",
			zap.String("drug", drug),
			zap.Stringer("omic", m),
			zap.Int("kept", len(features[m])),
			zap.Int("total", len(t.Features)))
	}

	internal, err := internalRaw.assemble(features)
	if err != nil {
		return nil, nil, fmt.Errorf("internal cohort of %s: %w", drug, err)
	}
	external, err := externalRaw.assemble(features)
	if err != nil {
		return nil, nil, fmt.Errorf("%s cohort of %s: %w", extern, drug, err)
	}
	return internal, external, nil
}
