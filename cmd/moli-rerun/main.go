package main

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/tsawler/go-moli/config"
	"github.com/tsawler/go-moli/crossval"
	"github.com/tsawler/go-moli/logging"
	"github.com/tsawler/go-moli/omics"
	"github.com/tsawler/go-moli/rerun"
	"github.com/tsawler/go-moli/tensor"
	"github.com/tsawler/go-moli/training"
)

type args struct {
	MethodName     string `arg:"--method_name,required" help:"method whose best parameters are rerun"`
	ExperimentName string `arg:"--experiment_name" help:"result directory name (default: method name)"`
	GPUNumber      *int   `arg:"--gpu_number" help:"GPU ordinal; the CPU is used when it is unavailable"`
	Config         string `arg:"--config" help:"TOML configuration file" default:"moli.toml"`
	LogLevel       string `arg:"--log_level" help:"overrides the configured log level"`
}

func (args) Description() string {
	return "Reruns the best hyperparameters of every drug under stratified cross-validation."
}

func main() {
	var a args
	arg.MustParse(&a)
	if err := run(a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(a args) error {
	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, a.Config)
	if err != nil {
		return err
	}
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	device, fellBack := tensor.SelectDevice(a.GPUNumber)
	if fellBack {
		logger.Warn("requested GPU is not available, using the CPU", zap.Int("gpu_number", *a.GPUNumber))
	}
	logger.Info("selected device", zap.Stringer("device", device), zap.Bool("gpu_available", tensor.IsGPUAvailable()))

	loader := omics.NewTSVLoader(fs, cfg.Paths.Data, logger)
	loader.Thresholds = cfg.Features.Thresholds()

	pipeline := &rerun.TrainingPipeline{Options: training.Options{
		Device:    device,
		PinMemory: cfg.Loader.PinMemory,
		Workers:   cfg.Loader.Workers,
		Logger:    logger,
	}}
	controller := rerun.NewController(loader, pipeline, logger)
	controller.Splitter = crossval.NewStratifiedKFold(cfg.CrossVal.Splits, cfg.CrossVal.Shuffle, cfg.CrossVal.Seed)
	controller.Seed = cfg.CrossVal.Seed

	runner := &rerun.Runner{
		Fs:         fs,
		Root:       cfg.Paths.Results,
		Drugs:      cfg.Drugs,
		Output:     cfg.Output,
		Controller: controller,
		Logger:     logger,
	}
	return runner.Run(a.MethodName, a.ExperimentName)
}
