package rerun

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tsawler/go-moli/config"
	"github.com/tsawler/go-moli/hyperparams"
)

// Output file names of a drug's result directory.
const (
	LogFile    = "logs.txt"
	ResultFile = "rerun_results.txt"
	JSONFile   = "rerun_results.json"
	PlotFile   = "rerun_results.png"
)

// Runner reruns every drug found under Root:
// <Root>/<drug>/<method>/logs.txt is read and the report is written to
// <Root>/<drug>/<experiment or method>/rerun_results.txt.
type Runner struct {
	Fs         afero.Fs
	Root       string
	Drugs      config.DrugsConfig
	Output     config.OutputConfig
	Controller *Controller
	Logger     *zap.Logger
}

// Run reruns all drugs in name order. A failing drug is reported in its
// result file and the log, and the run moves on to the next one; the joined
// errors are returned at the end.
func (r *Runner) Run(methodName, experimentName string) error {
	if methodName == "" {
		return fmt.Errorf("method name is required")
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	outName := experimentName
	if outName == "" {
		outName = methodName
	}

	entries, err := afero.ReadDir(r.Fs, r.Root)
	if err != nil {
		return fmt.Errorf("list drugs: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		drug := entry.Name()
		if !entry.IsDir() || r.Drugs.IsExcluded(drug) {
			continue
		}
		if err := r.runDrug(drug, methodName, outName); err != nil {
			logger.Error("rerun failed", zap.String("drug", drug), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", drug, err))
			continue
		}
		logger.Info("rerun finished", zap.String("drug", drug))
	}
	return errors.Join(errs...)
}

func (r *Runner) runDrug(drug, methodName, outName string) (err error) {
	outDir := path.Join(r.Root, drug, outName)
	if err := r.Fs.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create result directory: %w", err)
	}
	f, err := r.Fs.Create(path.Join(outDir, ResultFile))
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	defer func() {
		if err != nil {
			fmt.Fprintf(f, "\n Rerun failed: %v \n", err)
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	params, err := r.loadParams(path.Join(r.Root, drug, methodName, LogFile))
	if err != nil {
		return err
	}
	extern, ok := r.Drugs.External[drug]
	if !ok {
		return fmt.Errorf("no external cohort configured for %s", drug)
	}

	record, err := r.Controller.RerunDrug(drug, extern, params, f)
	if err != nil {
		return err
	}

	if r.Output.JSON {
		if err := r.writeFile(path.Join(outDir, JSONFile), record.WriteJSON); err != nil {
			return err
		}
	}
	if r.Output.Plot {
		if err := r.writeFile(path.Join(outDir, PlotFile), record.WritePlot); err != nil {
			return err
		}
	}
	return nil
}

// loadParams reads the hyperparameter records of a drug. A missing log
// yields no records, which the controller rejects before training.
func (r *Runner) loadParams(logPath string) ([]hyperparams.Params, error) {
	if _, err := r.Fs.Stat(logPath); os.IsNotExist(err) {
		return nil, nil
	}
	return hyperparams.LoadLog(r.Fs, logPath)
}

func (r *Runner) writeFile(name string, write func(w io.Writer) error) error {
	f, err := r.Fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}
