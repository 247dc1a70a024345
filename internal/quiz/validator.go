package quiz

import (
	"fmt"
	"strings"
)

const minQuestionTextLength = 5

type ReportCounts struct {
	Total          int `json:"total"`
	MultipleChoice int `json:"multiple_choice"`
	Essay          int `json:"essay"`
}

// ValidationReport separates blocking errors from advisory warnings.
// The report never mutates the candidates and never enforces anything;
// the commit step decides what to do with it.
type ValidationReport struct {
	Errors   []string     `json:"errors"`
	Warnings []string     `json:"warnings"`
	IsValid  bool         `json:"is_valid"`
	Counts   ReportCounts `json:"counts"`
}

// Validate re-checks a candidate batch independently of how it was
// produced, so operator-edited candidates go through the same rules as
// freshly parsed ones.
func Validate(candidates []Candidate) *ValidationReport {
	report := &ValidationReport{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}

	for i, c := range candidates {
		label := i + 1
		if c.SourceRow > 0 {
			label = c.SourceRow
		}

		if len(strings.TrimSpace(c.QuestionText)) < minQuestionTextLength {
			report.Errors = append(report.Errors,
				fmt.Sprintf("Row %d: question text must be at least %d characters", label, minQuestionTextLength))
		}

		switch c.QuestionType {
		case TypeMultipleChoice:
			report.Counts.MultipleChoice++
			if len(c.Options) < 2 {
				report.Errors = append(report.Errors,
					fmt.Sprintf("Row %d: multiple choice must have at least 2 options", label))
			}
			if strings.TrimSpace(c.CorrectAnswer) == "" {
				report.Errors = append(report.Errors,
					fmt.Sprintf("Row %d: correct answer is missing", label))
			} else if _, ok := c.Options[c.CorrectAnswer]; !ok {
				report.Errors = append(report.Errors,
					fmt.Sprintf("Row %d: correct answer '%s' is not one of the options", label, c.CorrectAnswer))
			}
		case TypeEssay:
			report.Counts.Essay++
			if strings.TrimSpace(c.CorrectAnswer) == "" {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("Row %d: essay has no reference answer", label))
			}
		}

		if c.Points <= 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Row %d: points is not positive, default will be used", label))
		}
	}

	report.Counts.Total = len(candidates)
	report.IsValid = len(report.Errors) == 0
	return report
}
