// Package workflow implements the Temporal workflows of the essay scoring
// service.
//
// BatchScoringWorkflow fans a batch of essays out to ScoreEssay activities
// and then summarizes the results with SummarizeBatch. The workflow itself
// only coordinates: fuzzy inference, aggregation and event emission happen
// in activities.
//
// Workflows must stay deterministic. They never read the clock, generate
// random values or perform I/O directly; such work belongs in activities.
package workflow
