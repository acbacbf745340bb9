package training

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tsawler/go-moli/dataset"
	"github.com/tsawler/go-moli/layers"
	"github.com/tsawler/go-moli/tensor"
)

// Result holds the ranking metrics of one evaluation.
type Result struct {
	AUROC float64
	AUPRC float64
}

// Predict returns the response probability of every sample of cohort. The
// cohort is scaled with the bundle's scaler and the models run in evaluation
// mode, so repeated calls return the same values.
func Predict(bundle *Bundle, cohort *dataset.Cohort, device tensor.Device) ([]float64, error) {
	if bundle == nil || bundle.Classifier == nil {
		return nil, fmt.Errorf("bundle is not trained")
	}
	return predict(bundle.Encoders(), bundle.Classifier, bundle.Scaler, cohort, device)
}

func predict(encoders Encoders, classifier *layers.Classifier, scaler *dataset.StandardScaler, cohort *dataset.Cohort, device tensor.Device) ([]float64, error) {
	if err := cohort.Validate(); err != nil {
		return nil, err
	}
	encoders.Eval()
	classifier.Eval()

	embeddings := make([]*tensor.Tensor, 0, len(dataset.Modalities))
	for _, m := range dataset.Modalities {
		var data mat.Matrix = cohort.Matrix(m)
		if m == dataset.Expression && scaler != nil {
			scaled, err := scaler.Transform(data)
			if err != nil {
				return nil, fmt.Errorf("failed to scale expression: %w", err)
			}
			data = scaled
		}
		input, err := tensor.FromDense(data, device.Type)
		if err != nil {
			return nil, err
		}
		z, err := encoders.get(m).Forward(input)
		if err != nil {
			return nil, fmt.Errorf("%s encoder: %w", m, err)
		}
		embeddings = append(embeddings, z.Detach())
	}

	logits, err := classifier.ForwardEmbeddings(embeddings...)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	probabilities := tensor.Sigmoid(logits.Detach())
	return append([]float64(nil), probabilities.Data...), nil
}

// Test evaluates bundle on cohort. A cohort with a single response class
// yields a *DegenerateLabelSetError.
func Test(bundle *Bundle, cohort *dataset.Cohort, device tensor.Device) (Result, error) {
	scores, err := Predict(bundle, cohort, device)
	if err != nil {
		return Result{}, err
	}
	return score(scores, cohort.Response)
}

func score(scores []float64, labels []int) (Result, error) {
	auroc, err := AUROC(scores, labels)
	if err != nil {
		return Result{}, err
	}
	auprc, err := AveragePrecision(scores, labels)
	if err != nil {
		return Result{}, err
	}
	return Result{AUROC: auroc, AUPRC: auprc}, nil
}

// EnsembleResult holds each member's probabilities, their mean and the
// metrics of the mean.
type EnsembleResult struct {
	Probabilities [][]float64
	Mean          []float64
	Result
}

// TestEnsemble evaluates every bundle on cohort and scores the averaged
// probabilities.
func TestEnsemble(bundles []*Bundle, cohort *dataset.Cohort, device tensor.Device) (EnsembleResult, error) {
	if len(bundles) == 0 {
		return EnsembleResult{}, fmt.Errorf("ensemble has no members")
	}
	out := EnsembleResult{
		Probabilities: make([][]float64, len(bundles)),
		Mean:          make([]float64, cohort.Len()),
	}
	for i, b := range bundles {
		p, err := Predict(b, cohort, device)
		if err != nil {
			return EnsembleResult{}, fmt.Errorf("member %d: %w", i, err)
		}
		out.Probabilities[i] = p
		for j, v := range p {
			out.Mean[j] += v / float64(len(bundles))
		}
	}
	result, err := score(out.Mean, cohort.Response)
	if err != nil {
		return EnsembleResult{}, err
	}
	out.Result = result
	return out, nil
}
