// Package hyperparams reads the best hyperparameter records found by the
// Bayesian optimisation search back from its logs.
package hyperparams

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Params is one immutable hyperparameter configuration. Fold i of a rerun
// uses record i of the log.
type Params struct {
	MiniBatch int

	// Embedding sizes of the expression, mutation and cna encoders.
	HDim1, HDim2, HDim3 int

	LRExpression float64
	LRMutation   float64
	LRCNA        float64
	LRClassifier float64

	DropoutExpression float64
	DropoutMutation   float64
	DropoutCNA        float64
	DropoutClassifier float64

	WeightDecay           float64
	WeightDecayClassifier float64

	Gamma  float64
	Margin float64

	Epochs           int
	EpochsClassifier int

	SemiHardTriplet bool
	ScaleExpression bool
}

type field struct {
	required bool
	set      func(p *Params, v Value) error
}

func intField(dst func(*Params) *int) field {
	return field{required: true, set: func(p *Params, v Value) error {
		n, err := v.Int()
		if err != nil {
			return err
		}
		*dst(p) = n
		return nil
	}}
}

func floatField(dst func(*Params) *float64) field {
	return field{required: true, set: func(p *Params, v Value) error {
		f, err := v.Float()
		if err != nil {
			return err
		}
		*dst(p) = f
		return nil
	}}
}

func boolField(dst func(*Params) *bool) field {
	return field{set: func(p *Params, v Value) error {
		b, err := v.Bool()
		if err != nil {
			return err
		}
		*dst(p) = b
		return nil
	}}
}

func optional(f field) field {
	f.required = false
	return f
}

var fields = map[string]field{
	"mini_batch":        intField(func(p *Params) *int { return &p.MiniBatch }),
	"h_dim1":            intField(func(p *Params) *int { return &p.HDim1 }),
	"h_dim2":            intField(func(p *Params) *int { return &p.HDim2 }),
	"h_dim3":            intField(func(p *Params) *int { return &p.HDim3 }),
	"lr_e":              floatField(func(p *Params) *float64 { return &p.LRExpression }),
	"lr_m":              floatField(func(p *Params) *float64 { return &p.LRMutation }),
	"lr_c":              floatField(func(p *Params) *float64 { return &p.LRCNA }),
	"lr_cl":             floatField(func(p *Params) *float64 { return &p.LRClassifier }),
	"dropout_rate_e":    floatField(func(p *Params) *float64 { return &p.DropoutExpression }),
	"dropout_rate_m":    floatField(func(p *Params) *float64 { return &p.DropoutMutation }),
	"dropout_rate_c":    floatField(func(p *Params) *float64 { return &p.DropoutCNA }),
	"dropout_rate_clf":  floatField(func(p *Params) *float64 { return &p.DropoutClassifier }),
	"weight_decay":      floatField(func(p *Params) *float64 { return &p.WeightDecay }),
	"weight_decay_cl":   optional(floatField(func(p *Params) *float64 { return &p.WeightDecayClassifier })),
	"gamma":             floatField(func(p *Params) *float64 { return &p.Gamma }),
	"margin":            floatField(func(p *Params) *float64 { return &p.Margin }),
	"epochs":            intField(func(p *Params) *int { return &p.Epochs }),
	"epochs_cl":         intField(func(p *Params) *int { return &p.EpochsClassifier }),
	"semi_hard_triplet": boolField(func(p *Params) *bool { return &p.SemiHardTriplet }),
	"scale_expression":  boolField(func(p *Params) *bool { return &p.ScaleExpression }),
}

// Keys returns the recognised mapping keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromMapping converts a parsed mapping into Params. Unknown keys, missing
// required keys and values of the wrong type are errors. None leaves the
// default of an optional key in place.
func FromMapping(m Mapping) (Params, error) {
	p := Params{ScaleExpression: true}
	seen := make(map[string]bool, len(m))
	var errs []error

	for _, entry := range m {
		f, ok := fields[entry.Key]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown key %q", entry.Key))
			continue
		}
		if seen[entry.Key] {
			errs = append(errs, fmt.Errorf("duplicate key %q", entry.Key))
			continue
		}
		seen[entry.Key] = true
		if entry.Value.Kind == NoneValue {
			if f.required {
				errs = append(errs, fmt.Errorf("key %q must not be None", entry.Key))
			}
			continue
		}
		if err := f.set(&p, entry.Value); err != nil {
			errs = append(errs, fmt.Errorf("key %q: %w", entry.Key, err))
		}
	}

	var missing []string
	for _, k := range Keys() {
		if fields[k].required && !seen[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing keys: %s", strings.Join(missing, ", ")))
	}
	if !seen["weight_decay_cl"] {
		p.WeightDecayClassifier = p.WeightDecay
	}
	if len(errs) > 0 {
		return Params{}, errors.Join(errs...)
	}
	return p, p.Validate()
}

// Validate checks value ranges.
func (p Params) Validate() error {
	var errs []error
	positive := map[string]int{
		"mini_batch": p.MiniBatch, "h_dim1": p.HDim1, "h_dim2": p.HDim2, "h_dim3": p.HDim3,
		"epochs": p.Epochs, "epochs_cl": p.EpochsClassifier,
	}
	for _, k := range sortedKeys(positive) {
		if positive[k] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", k, positive[k]))
		}
	}
	rates := map[string]float64{
		"lr_e": p.LRExpression, "lr_m": p.LRMutation, "lr_c": p.LRCNA, "lr_cl": p.LRClassifier,
	}
	for _, k := range sortedKeys(rates) {
		if !(rates[k] > 0) || math.IsInf(rates[k], 0) {
			errs = append(errs, fmt.Errorf("%s must be a positive number, got %v", k, rates[k]))
		}
	}
	dropouts := map[string]float64{
		"dropout_rate_e": p.DropoutExpression, "dropout_rate_m": p.DropoutMutation,
		"dropout_rate_c": p.DropoutCNA, "dropout_rate_clf": p.DropoutClassifier,
	}
	for _, k := range sortedKeys(dropouts) {
		if !(dropouts[k] >= 0 && dropouts[k] < 1) {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1), got %v", k, dropouts[k]))
		}
	}
	nonNegative := map[string]float64{
		"weight_decay": p.WeightDecay, "weight_decay_cl": p.WeightDecayClassifier,
		"gamma": p.Gamma, "margin": p.Margin,
	}
	for _, k := range sortedKeys(nonNegative) {
		if !(nonNegative[k] >= 0) {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %v", k, nonNegative[k]))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
