// Package models contains domain models for asklens.
package models

import "time"

// Cluster is a group of semantically equivalent questions.
// Clusters are built fresh per grouping call and never mutated afterwards.
type Cluster struct {
	// Representative is the original text of the cluster seed.
	Representative string `json:"representative" yaml:"representative"`
	// SimilarQuestions lists member texts in discovery order, representative first.
	SimilarQuestions []string `json:"similar_questions" yaml:"similar_questions"`
	// TotalCount sums the raw occurrence counts of every member.
	TotalCount int `json:"total_count" yaml:"total_count"`
}

// Variants returns the number of distinct member texts.
func (c Cluster) Variants() int {
	return len(c.SimilarQuestions)
}

// DocumentAnalysis groups the questions that led to one referenced document.
type DocumentAnalysis struct {
	DocumentSource string    `json:"document_source" yaml:"document_source"`
	ReferenceCount int64     `json:"reference_count" yaml:"reference_count"`
	Questions      []Cluster `json:"questions" yaml:"questions"`
}

// QuestionReport summarizes what an organization's users are asking.
type QuestionReport struct {
	OrgID             string             `json:"org_id" yaml:"org_id"`
	StartDate         *time.Time         `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate           *time.Time         `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	TotalQuestions    int                `json:"total_questions" yaml:"total_questions"`
	Questions         []Cluster          `json:"questions" yaml:"questions"`
	DocumentsAnalysis []DocumentAnalysis `json:"documents_analysis" yaml:"documents_analysis"`
	GeneratedAt       time.Time          `json:"generated_at" yaml:"generated_at"`
}
