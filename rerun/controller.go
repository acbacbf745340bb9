package rerun

import (
	"errors"
	"fmt"
	"io"

	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"go.uber.org/zap"

	"github.com/tsawler/go-moli/crossval"
	"github.com/tsawler/go-moli/dataset"
	"github.com/tsawler/go-moli/hyperparams"
	"github.com/tsawler/go-moli/omics"
	"github.com/tsawler/go-moli/training"
)

// InsufficientConfigurationError reports fewer hyperparameter records than
// cross-validation folds.
type InsufficientConfigurationError struct {
	Folds   int
	Records int
}

func (e *InsufficientConfigurationError) Error() string {
	return fmt.Sprintf("%d folds need %d hyperparameter records, found %d", e.Folds, e.Folds, e.Records)
}

// Pipeline trains and evaluates one fold.
type Pipeline interface {
	Train(params hyperparams.Params, train *dataset.Cohort, seed uint64) (*training.Bundle, error)
	Evaluate(bundle *training.Bundle, cohort *dataset.Cohort) (training.Result, error)
}

// TrainingPipeline is the Pipeline of the training package.
type TrainingPipeline struct {
	Options training.Options
}

func (p *TrainingPipeline) Train(params hyperparams.Params, train *dataset.Cohort, seed uint64) (*training.Bundle, error) {
	opts := p.Options
	opts.Seed = seed
	return training.TrainFinal(params, train, opts)
}

func (p *TrainingPipeline) Evaluate(bundle *training.Bundle, cohort *dataset.Cohort) (training.Result, error) {
	return training.Test(bundle, cohort, p.Options.Device)
}

// Controller runs the outer cross-validation of one drug. Fold i trains with
// hyperparameter record i and a generator seeded with Seed+i.
type Controller struct {
	Loader   omics.Loader
	Pipeline Pipeline
	Splitter *crossval.StratifiedKFold
	Seed     uint64
	Logger   *zap.Logger
}

// NewController creates a controller with the 5-fold, seed 42 layout.
func NewController(loader omics.Loader, pipeline Pipeline, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		Loader:   loader,
		Pipeline: pipeline,
		Splitter: crossval.NewStratifiedKFold(5, true, 42),
		Seed:     42,
		Logger:   logger,
	}
}

// RerunDrug loads the cohorts of drug and reruns the cross-validation,
// writing the report to out as it goes.
func (c *Controller) RerunDrug(drug, extern string, params []hyperparams.Params, out io.Writer) (*Record, error) {
	if err := c.checkRecords(params); err != nil {
		return nil, err
	}
	internal, external, err := c.Loader.LoadDrugData(drug, extern)
	if err != nil {
		return nil, err
	}
	return c.Rerun(drug, extern, internal, external, params, out)
}

func (c *Controller) checkRecords(params []hyperparams.Params) error {
	if len(params) < c.Splitter.NSplits {
		return &InsufficientConfigurationError{Folds: c.Splitter.NSplits, Records: len(params)}
	}
	return nil
}

// Rerun runs the cross-validation on already loaded cohorts.
func (c *Controller) Rerun(drug, extern string, internal, external *dataset.Cohort, params []hyperparams.Params, out io.Writer) (*Record, error) {
	if err := c.checkRecords(params); err != nil {
		return nil, err
	}
	if len(params) > c.Splitter.NSplits {
		c.Logger.Warn("ignoring surplus hyperparameter records",
			zap.String("drug", drug),
			zap.Int("records", len(params)),
			zap.Int("folds", c.Splitter.NSplits))
	}

	if _, err := fmt.Fprintf(out, "Start for %s\n", drug); err != nil {
		return nil, err
	}
	c.Logger.Info("start rerun", zap.String("drug", drug), zap.String("extern", extern))

	folds, err := c.Splitter.Split(internal.Response)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", drug, err)
	}

	record := newRecord(drug, extern)
	var foldErr error
	err = tqdm.With(iterators.Interval(0, len(folds)), " Outer k-fold", func(v interface{}) (brk bool) {
		i := v.(int)
		if err := c.runFold(record, i, folds[i], params[i], internal, external); err != nil {
			foldErr = fmt.Errorf("fold %d: %w", i, err)
			return true
		}
		return false
	})
	if err = errors.Join(foldErr, err); err != nil {
		return record, err
	}

	record.Summaries, err = Aggregate(record.Series)
	if err != nil {
		return record, err
	}
	if err := WriteSummary(out, drug, record.Summaries); err != nil {
		return record, err
	}
	record.NoSkillAUPRC, err = NoSkillAUPRC(external.Response)
	if err != nil {
		return record, fmt.Errorf("%s cohort: %w", extern, err)
	}
	return record, record.writeTail(out)
}

func (c *Controller) runFold(record *Record, i int, fold crossval.Fold, params hyperparams.Params, internal, external *dataset.Cohort) error {
	train, err := internal.Subset(fold.Train)
	if err != nil {
		return err
	}
	test, err := internal.Subset(fold.Test)
	if err != nil {
		return err
	}

	bundle, err := c.Pipeline.Train(params, train, c.Seed+uint64(i))
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	testResult, err := c.Pipeline.Evaluate(bundle, test)
	if err != nil {
		return fmt.Errorf("test: %w", err)
	}
	externResult, err := c.Pipeline.Evaluate(bundle, external)
	if err != nil {
		return fmt.Errorf("extern: %w", err)
	}

	record.add(TestAUROC, testResult.AUROC)
	record.add(TestAUPRC, testResult.AUPRC)
	record.add(ExternAUROC, externResult.AUROC)
	record.add(ExternAUPRC, externResult.AUPRC)
	c.Logger.Info("fold done",
		zap.String("drug", record.Drug),
		zap.Int("fold", i),
		zap.Float64("test_auroc", testResult.AUROC),
		zap.Float64("extern_auroc", externResult.AUROC))
	return nil
}
