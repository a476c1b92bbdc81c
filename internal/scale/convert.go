// Package scale converts an overall score in [0, 1] into the display
// representations graders and reports use: point scales, letter grades and
// qualitative bands.
package scale

import (
	"fmt"
	"math"

	"github.com/ahrav/go-essaygrade/internal/domain"
)

type gradeStep struct {
	min   float64
	grade string
}

var letterAE = []gradeStep{
	{0.90, "A"},
	{0.75, "B"},
	{0.60, "C"},
	{0.40, "D"},
}

var letterPlusMinus = []gradeStep{
	{0.97, "A+"},
	{0.93, "A"},
	{0.90, "A-"},
	{0.87, "B+"},
	{0.83, "B"},
	{0.80, "B-"},
	{0.77, "C+"},
	{0.73, "C"},
	{0.70, "C-"},
	{0.67, "D+"},
	{0.63, "D"},
	{0.60, "D-"},
}

var bands = []gradeStep{
	{0.9, "Excellent"},
	{0.8, "Very Good"},
	{0.7, "Good"},
	{0.6, "Satisfactory"},
	{0.5, "Acceptable"},
}

func grade(steps []gradeStep, v float64, fallback string) string {
	for _, s := range steps {
		if v >= s.min {
			return s.grade
		}
	}
	return fallback
}

// Clamp bounds overall to [0, 1]. NaN maps to 0.
func Clamp(overall float64) float64 {
	if math.IsNaN(overall) {
		return 0
	}
	return math.Max(0, math.Min(overall, 1))
}

// Convert renders overall on scale s. The value is clamped to [0, 1] first.
// An unknown scale renders the clamped value with two decimals.
func Convert(overall float64, s domain.Scale) string {
	o := Clamp(overall)
	switch s {
	case domain.ScaleFivePoint:
		return fmt.Sprintf("%.1f/5", 1+o*4)
	case domain.ScaleTwentyPoint:
		return fmt.Sprintf("%.1f/20", 1+o*19)
	case domain.ScaleLetterAE:
		return grade(letterAE, o, "E")
	case domain.ScaleLetterPlusMinus:
		return grade(letterPlusMinus, o, "F")
	case domain.ScaleHundredPoint:
		return fmt.Sprintf("%.1f/100", o*100)
	case domain.ScaleFiftyPoint:
		return fmt.Sprintf("%.1f/50", o*50)
	default:
		return fmt.Sprintf("%.2f", o)
	}
}

// ConvertAll renders overall on every scale, keyed by the scale's CSV column.
func ConvertAll(overall float64) map[string]string {
	all := domain.AllScales()
	out := make(map[string]string, len(all))
	for _, s := range all {
		out[s.Column()] = Convert(overall, s)
	}
	return out
}

// Band returns the qualitative performance band for overall.
func Band(overall float64) string {
	return grade(bands, Clamp(overall), "Needs Improvement")
}
