package training

import (
	"fmt"
	"sort"
)

// DegenerateLabelSetError reports a label vector with a single class, for
// which ranking metrics are undefined.
type DegenerateLabelSetError struct {
	Label int
	Count int
}

func (e *DegenerateLabelSetError) Error() string {
	return fmt.Sprintf("all %d labels are %d: AUROC and AUPRC need both classes", e.Count, e.Label)
}

// ROCPoint represents a point on the ROC curve
type ROCPoint struct {
	Threshold float64
	TPR       float64 // True Positive Rate (Recall)
	FPR       float64 // False Positive Rate (1 - Specificity)
	Precision float64
}

// ROCCurve returns one point per distinct score, from the highest threshold
// down. Tied scores share one point.
func ROCCurve(scores []float64, labels []int) ([]ROCPoint, error) {
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("%d scores for %d labels", len(scores), len(labels))
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("no samples to score")
	}

	totalPos, totalNeg := 0, 0
	for i, l := range labels {
		switch l {
		case 1:
			totalPos++
		case 0:
			totalNeg++
		default:
			return nil, fmt.Errorf("label %d of sample %d is not binary", l, i)
		}
	}
	if totalPos == 0 {
		return nil, &DegenerateLabelSetError{Label: 0, Count: totalNeg}
	}
	if totalNeg == 0 {
		return nil, &DegenerateLabelSetError{Label: 1, Count: totalPos}
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	// Sort by prediction score (descending)
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	var points []ROCPoint
	tp, fp := 0, 0
	for k, idx := range order {
		if labels[idx] == 1 {
			tp++
		} else {
			fp++
		}
		if k+1 < len(order) && scores[order[k+1]] == scores[idx] {
			continue
		}
		points = append(points, ROCPoint{
			Threshold: scores[idx],
			TPR:       float64(tp) / float64(totalPos),
			FPR:       float64(fp) / float64(totalNeg),
			Precision: float64(tp) / float64(tp+fp),
		})
	}
	return points, nil
}

// AUROC is the area under the ROC curve by the trapezoidal rule.
func AUROC(scores []float64, labels []int) (float64, error) {
	points, err := ROCCurve(scores, labels)
	if err != nil {
		return 0, err
	}
	auc := 0.0
	prevTPR, prevFPR := 0.0, 0.0
	for _, p := range points {
		auc += (p.FPR - prevFPR) * (p.TPR + prevTPR) / 2.0
		prevTPR, prevFPR = p.TPR, p.FPR
	}
	return auc, nil
}

// AveragePrecision summarises the precision-recall curve as the
// recall-weighted mean of precision: sum_n (R_n - R_{n-1}) * P_n.
func AveragePrecision(scores []float64, labels []int) (float64, error) {
	points, err := ROCCurve(scores, labels)
	if err != nil {
		return 0, err
	}
	ap := 0.0
	prevRecall := 0.0
	for _, p := range points {
		ap += (p.TPR - prevRecall) * p.Precision
		prevRecall = p.TPR
	}
	return ap, nil
}
