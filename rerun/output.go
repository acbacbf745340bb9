package rerun

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct converts the record to a protobuf Struct.
func (r *Record) ToStruct() (*structpb.Struct, error) {
	series := make(map[string]interface{}, len(r.Series))
	for _, s := range r.Series {
		values := make([]interface{}, len(s.Values))
		for i, v := range s.Values {
			values[i] = v
		}
		series[s.Name] = values
	}
	summaries := make(map[string]interface{}, len(r.Summaries))
	for _, s := range r.Summaries {
		summaries[s.Name] = map[string]interface{}{
			"max":  s.Max,
			"min":  s.Min,
			"mean": s.Mean,
			"std":  s.Std,
		}
	}
	return structpb.NewStruct(map[string]interface{}{
		"drug":                  r.Drug,
		"extern":                r.Extern,
		"folds":                 float64(r.Folds()),
		"series":                series,
		"summary":               summaries,
		"no_skill_extern_auprc": r.NoSkillAUPRC,
	})
}

// WriteJSON writes the record as indented JSON.
func (r *Record) WriteJSON(w io.Writer) error {
	s, err := r.ToStruct()
	if err != nil {
		return fmt.Errorf("convert record: %w", err)
	}
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WritePlot draws every series against the fold index as a PNG, with the
// no-skill baseline as a dashed line.
func (r *Record) WritePlot(w io.Writer) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Rerun of %s (extern %s)", r.Drug, r.Extern)
	p.X.Label.Text = "fold"
	p.Y.Label.Text = "score"
	p.Y.Min, p.Y.Max = 0, 1
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, s := range r.Series {
		if len(s.Values) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Values))
		for k, v := range s.Values {
			xys[k] = plotter.XY{X: float64(k), Y: v}
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(s.Name, line, points)
	}

	if n := r.Folds(); n > 0 {
		baseline, err := plotter.NewLine(plotter.XYs{
			{X: 0, Y: r.NoSkillAUPRC},
			{X: float64(n - 1), Y: r.NoSkillAUPRC},
		})
		if err != nil {
			return err
		}
		baseline.Color = color.Gray{Y: 128}
		baseline.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(baseline)
		p.Legend.Add("no skill extern auprc", baseline)
	}

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
