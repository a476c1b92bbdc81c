package domain

import "errors"

// ErrInvalidRequest indicates that a scoring request contains invalid data.
var ErrInvalidRequest = errors.New("invalid scoring request")

// ErrInvalidConfig indicates that the evaluation configuration is invalid.
var ErrInvalidConfig = errors.New("invalid evaluation configuration")

// ErrUnknownCriterion indicates a criterion name outside the rubric vocabulary.
var ErrUnknownCriterion = errors.New("unknown criterion")

// ErrUnknownRubric indicates a rubric choice other than 1, 2 or 3.
var ErrUnknownRubric = errors.New("unknown rubric choice")

// ErrUnknownScale indicates a scale identifier outside the six known scales.
var ErrUnknownScale = errors.New("unknown scale")

// ErrInvalidWeights indicates a negative or non-finite criterion weight.
var ErrInvalidWeights = errors.New("invalid criterion weights")

// ErrEmptyBatch indicates a batch request without essays.
var ErrEmptyBatch = errors.New("batch contains no essays")
