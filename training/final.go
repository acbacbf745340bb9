package training

import (
	"fmt"
	"io"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/tsawler/go-moli/dataset"
	"github.com/tsawler/go-moli/hyperparams"
	"github.com/tsawler/go-moli/layers"
	"github.com/tsawler/go-moli/mining"
	"github.com/tsawler/go-moli/optimizer"
	"github.com/tsawler/go-moli/tensor"
)

// DefaultWorkers is the number of loader workers used when Options leaves it
// unset.
const DefaultWorkers = 8

// Bundle is a trained model: three encoders, the classifier and the scaler
// fitted on the training expression data. Scaler is nil when expression was
// not scaled.
type Bundle struct {
	ExpressionEncoder *layers.Encoder
	MutationEncoder   *layers.Encoder
	CNAEncoder        *layers.Encoder
	Classifier        *layers.Classifier
	Scaler            *dataset.StandardScaler
}

// Encoders returns the bundle's encoders as a group.
func (b *Bundle) Encoders() Encoders {
	return Encoders{Expression: b.ExpressionEncoder, Mutation: b.MutationEncoder, CNA: b.CNAEncoder}
}

// Options carries the run-wide settings of a training call.
type Options struct {
	Device    tensor.Device
	PinMemory bool
	Workers   int
	// Seed drives weight initialisation, dropout masks and the sampler.
	Seed uint64

	Logger   *zap.Logger
	Progress io.Writer
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return DefaultWorkers
	}
	return o.Workers
}

// newRNG returns the generator a training call draws all randomness from.
func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// modalitySettings picks the embedding size, learning rate and dropout of one
// modality's encoder.
func modalitySettings(p hyperparams.Params, m dataset.Modality) (embedding int, lr, dropout float64) {
	switch m {
	case dataset.Expression:
		return p.HDim1, p.LRExpression, p.DropoutExpression
	case dataset.Mutation:
		return p.HDim2, p.LRMutation, p.DropoutMutation
	default:
		return p.HDim3, p.LRCNA, p.DropoutCNA
	}
}

// newWeightedLoader builds the class-balanced training loader: samples are
// drawn with replacement by inverse class frequency and the last partial
// batch is dropped.
func newWeightedLoader(cohort *dataset.Cohort, batchSize int, rng *rand.Rand, opts Options) (*dataset.DataLoader, error) {
	if cohort.Len() < batchSize {
		return nil, fmt.Errorf("%d training samples cannot fill a mini-batch of %d", cohort.Len(), batchSize)
	}
	sampler, err := dataset.NewWeightedSampler(cohort.Response, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}
	return dataset.NewDataLoader(cohort, sampler, dataset.LoaderConfig{
		BatchSize: batchSize,
		Workers:   opts.workers(),
		DropLast:  true,
		PinMemory: opts.PinMemory,
		Device:    opts.Device.Type,
	})
}

// scaleExpression fits a scaler on the cohort's expression matrix and returns
// the cohort with scaled expression.
func scaleExpression(cohort *dataset.Cohort) (*dataset.Cohort, *dataset.StandardScaler, error) {
	scaler := &dataset.StandardScaler{}
	scaled, err := scaler.FitTransform(cohort.Expression)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scale expression: %w", err)
	}
	out, err := dataset.NewCohort(scaled, cohort.Mutation, cohort.CNA, cohort.Response)
	if err != nil {
		return nil, nil, err
	}
	return out, scaler, nil
}

// TrainFinal trains a complete bundle on cohort: the expression scaler, three
// triplet-pretrained encoders and the classifier on their frozen embeddings.
// Each stage has its own Adagrad optimizer over a disjoint parameter set.
func TrainFinal(params hyperparams.Params, cohort *dataset.Cohort, opts Options) (*Bundle, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hyperparameters: %w", err)
	}
	if err := cohort.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training cohort: %w", err)
	}
	logger := opts.logger()
	rng := newRNG(opts.Seed)
	bundle := &Bundle{}

	train := cohort
	if params.ScaleExpression {
		var err error
		train, bundle.Scaler, err = scaleExpression(cohort)
		if err != nil {
			return nil, err
		}
	}

	loader, err := newWeightedLoader(train, params.MiniBatch, rng, opts)
	if err != nil {
		return nil, err
	}

	strategy := mining.NewStrategy(params.Margin, params.SemiHardTriplet)
	criterion := &TripletMarginLoss{Margin: params.Margin}
	optimizers := make(map[string]optimizer.Optimizer, len(dataset.Modalities)+1)

	for _, m := range dataset.Modalities {
		embedding, lr, dropout := modalitySettings(params, m)
		encoder, err := layers.NewEncoder(train.Features(m), embedding, dropout, rng, opts.Device.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s encoder: %w", m, err)
		}
		opt, err := optimizer.NewAdaGrad(encoder.Parameters(), optimizer.AdaGradConfig{
			LearningRate: lr,
			Epsilon:      optimizer.DefaultAdaGradConfig().Epsilon,
			WeightDecay:  params.WeightDecay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s optimizer: %w", m, err)
		}
		optimizers[m.String()] = opt

		_, err = TrainEncoder(encoder, opt, loader, EncoderTrainingConfig{
			Epochs:    params.Epochs,
			Omic:      m,
			Strategy:  strategy,
			Criterion: criterion,
			Device:    opts.Device,
			Logger:    logger,
			Progress:  opts.Progress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to train %s encoder: %w", m, err)
		}
		logger.Debug("encoder trained", zap.Stringer("omic", m), zap.Any("optimizer", opt.GetStats()))

		switch m {
		case dataset.Expression:
			bundle.ExpressionEncoder = encoder
		case dataset.Mutation:
			bundle.MutationEncoder = encoder
		case dataset.CNA:
			bundle.CNAEncoder = encoder
		}
	}
	logger.Debug("encoders trained", zap.Stringer("strategy", strategy))

	encoders := bundle.Encoders()
	classifier, opt, err := newClassifier(encoders, params, rng, opts.Device)
	if err != nil {
		return nil, err
	}
	optimizers["classifier"] = opt
	if err := optimizer.CheckDisjoint(optimizers); err != nil {
		return nil, err
	}

	_, err = TrainClassifier(encoders, classifier, opt, loader, ClassifierTrainingConfig{
		Epochs:   params.EpochsClassifier,
		Device:   opts.Device,
		Logger:   logger,
		Progress: opts.Progress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to train classifier: %w", err)
	}
	logger.Debug("classifier trained", zap.Any("optimizer", opt.GetStats()))
	bundle.Classifier = classifier
	return bundle, nil
}

// newClassifier creates a classifier over the concatenated embeddings of
// encoders together with its optimizer.
func newClassifier(encoders Encoders, params hyperparams.Params, rng *rand.Rand, device tensor.Device) (*layers.Classifier, *optimizer.AdaGrad, error) {
	classifier, err := layers.NewClassifier(encoders.EmbeddingSize(), params.DropoutClassifier, rng, device.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	opt, err := optimizer.NewAdaGrad(classifier.Parameters(), optimizer.AdaGradConfig{
		LearningRate: params.LRClassifier,
		Epsilon:      optimizer.DefaultAdaGradConfig().Epsilon,
		WeightDecay:  params.WeightDecayClassifier,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create classifier optimizer: %w", err)
	}
	return classifier, opt, nil
}

// ValidateClassifier trains a fresh classifier on pretrained encoders with the
// train cohort and returns its AUROC on validation. Both cohorts must already
// be scaled the way the encoders were trained.
func ValidateClassifier(encoders Encoders, params hyperparams.Params, train, validation *dataset.Cohort, opts Options) (float64, error) {
	rng := newRNG(opts.Seed)
	loader, err := newWeightedLoader(train, params.MiniBatch, rng, opts)
	if err != nil {
		return 0, err
	}
	classifier, opt, err := newClassifier(encoders, params, rng, opts.Device)
	if err != nil {
		return 0, err
	}
	_, err = TrainClassifier(encoders, classifier, opt, loader, ClassifierTrainingConfig{
		Epochs:   params.EpochsClassifier,
		Device:   opts.Device,
		Logger:   opts.Logger,
		Progress: opts.Progress,
	})
	if err != nil {
		return 0, err
	}
	scores, err := predict(encoders, classifier, nil, validation, opts.Device)
	if err != nil {
		return 0, err
	}
	return AUROC(scores, validation.Response)
}
