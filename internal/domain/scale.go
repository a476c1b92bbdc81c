package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Scale identifies an output representation for the overall score.
// Values match the legacy "1".."6" choice strings.
type Scale uint8

const (
	// ScaleFivePoint renders 1 + overall*4 as "x.y/5".
	ScaleFivePoint Scale = iota + 1

	// ScaleTwentyPoint renders 1 + overall*19 as "x.y/20".
	ScaleTwentyPoint

	// ScaleLetterAE renders a letter A through E.
	ScaleLetterAE

	// ScaleLetterPlusMinus renders a letter with plus/minus, or F.
	ScaleLetterPlusMinus

	// ScaleHundredPoint renders overall*100 as "x.y/100".
	ScaleHundredPoint

	// ScaleFiftyPoint renders overall*50 as "x.y/50".
	ScaleFiftyPoint
)

// DefaultScale is used when a request does not name a scale.
const DefaultScale = ScaleHundredPoint

type scaleInfo struct {
	key    string
	name   string
	column string
}

var scaleTable = map[Scale]scaleInfo{
	ScaleFivePoint:       {"five_point", "5-point scale", "5_point_score"},
	ScaleTwentyPoint:     {"twenty_point", "20-point scale", "20_point_score"},
	ScaleLetterAE:        {"letter_ae", "Letter grades (A-E)", "letter_grade"},
	ScaleLetterPlusMinus: {"letter_plus_minus", "Letter grades with plus/minus", "letter_grade_pm"},
	ScaleHundredPoint:    {"hundred_point", "100-point scale", "100_point_score"},
	ScaleFiftyPoint:      {"fifty_point", "50-point scale", "50_point_score"},
}

// AllScales returns every scale in identifier order.
func AllScales() []Scale {
	return []Scale{
		ScaleFivePoint,
		ScaleTwentyPoint,
		ScaleLetterAE,
		ScaleLetterPlusMinus,
		ScaleHundredPoint,
		ScaleFiftyPoint,
	}
}

// ParseScale accepts a numeric identifier ("1".."6") or a scale key such as
// "hundred_point". An empty string selects DefaultScale.
func ParseScale(s string) (Scale, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultScale, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if sc := Scale(n); n > 0 && n <= int(ScaleFiftyPoint) && sc.Valid() {
			return sc, nil
		}
		return 0, fmt.Errorf("%w: %q", ErrUnknownScale, s)
	}
	for sc, info := range scaleTable {
		if info.key == s {
			return sc, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownScale, s)
}

// Valid reports whether s is a known scale.
func (s Scale) Valid() bool {
	_, ok := scaleTable[s]
	return ok
}

// String returns the numeric identifier.
func (s Scale) String() string { return strconv.Itoa(int(s)) }

// Key returns the stable machine name, e.g. "letter_plus_minus".
func (s Scale) Key() string { return scaleTable[s].key }

// Name returns the human-readable scale name, or "Unknown scale".
func (s Scale) Name() string {
	if info, ok := scaleTable[s]; ok {
		return info.name
	}
	return "Unknown scale"
}

// Column returns the CSV column carrying this scale's representation.
func (s Scale) Column() string { return scaleTable[s].column }

// UnmarshalJSON accepts either a JSON number or a string identifier.
func (s *Scale) UnmarshalJSON(data []byte) error {
	raw, err := choiceString(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownScale, err)
	}
	parsed, err := ParseScale(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalJSON accepts either a JSON number or a string identifier.
func (r *RubricChoice) UnmarshalJSON(data []byte) error {
	raw, err := choiceString(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownRubric, err)
	}
	parsed, err := ParseRubricChoice(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// choiceString normalizes a JSON number, string or null to its text form.
func choiceString(data []byte) (string, error) {
	if string(data) == "null" {
		return "", nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		return str, nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return "", err
	}
	return num.String(), nil
}
