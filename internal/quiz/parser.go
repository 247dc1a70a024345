package quiz

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeEssay          QuestionType = "essay"
)

const (
	defaultPointsMultipleChoice = 10
	defaultPointsEssay          = 20
)

// Candidate is a parsed-but-not-persisted question. Operators can edit a
// candidate in the review step before committing the batch.
type Candidate struct {
	SourceRow     int               `json:"source_row"`
	QuestionText  string            `json:"question_text"`
	QuestionType  QuestionType      `json:"question_type"`
	Options       map[string]string `json:"options,omitempty"`
	CorrectAnswer string            `json:"correct_answer"`
	Points        int               `json:"points"`
	Explanation   *string           `json:"explanation,omitempty"`
}

// ParseResult carries the candidates in row order plus the row-level
// problems found during extraction. Row problems are data, not failures:
// the operator reviews them before committing.
type ParseResult struct {
	Candidates []Candidate `json:"candidates"`
	Errors     []string    `json:"errors"`
	HeaderRow  int         `json:"header_row"`
}

// ParseWorkbook reads the first sheet of a spreadsheet. Only structurally
// unreadable input (corrupt file, empty sheet, no data rows) returns an
// error; malformed rows accumulate in ParseResult.Errors.
func ParseWorkbook(r io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel sheet is empty")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return ParseRows(rows)
}

// ParseRows runs header detection and row extraction over a 2D cell grid.
func ParseRows(rows [][]string) (*ParseResult, error) {
	if len(rows) == 0 {
		return nil, errors.New("excel sheet is empty")
	}
	headerRow := FindHeaderRow(rows)
	if len(rows) <= headerRow+1 {
		return nil, errors.New("no data rows found")
	}
	header := BuildHeaderMap(rows[headerRow])

	result := &ParseResult{
		Candidates: make([]Candidate, 0, len(rows)-headerRow-1),
		Errors:     make([]string, 0),
		HeaderRow:  headerRow,
	}

	for i := headerRow + 1; i < len(rows); i++ {
		rowNo := i + 1
		row := rows[i]
		if isBlankRow(row) {
			continue
		}

		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		questionText := get(keyPertanyaan)
		if questionText == "" {
			// Spacer row, not malformed data.
			continue
		}

		qType := classifyQuestionType(get(keyTipe))
		candidate := Candidate{
			SourceRow:    rowNo,
			QuestionText: questionText,
			QuestionType: qType,
			Points:       parsePoints(get(keyPoin), qType),
		}
		if explanation := get(keyPenjelasan); explanation != "" {
			candidate.Explanation = &explanation
		}

		switch qType {
		case TypeMultipleChoice:
			options := collectOptions(get)
			if len(options) < 2 {
				result.Errors = append(result.Errors,
					fmt.Sprintf("Row %d: multiple choice must have at least 2 options", rowNo))
				continue
			}
			candidate.Options = options
			answer, errMsg := ResolveAnswer(rowNo, get(keyJawaban), options)
			candidate.CorrectAnswer = answer
			if errMsg != "" {
				result.Errors = append(result.Errors, errMsg)
			}
		case TypeEssay:
			candidate.CorrectAnswer = get(keyJawaban)
		}

		result.Candidates = append(result.Candidates, candidate)
	}

	return result, nil
}

// ResolveAnswer maps the raw answer cell to one of the option letters.
// Letter codes win, then an exact text match against option bodies. A blank
// cell falls back to the first option silently; anything else unmatched
// falls back too but records an error. The asymmetry is intentional:
// "unanswered" and "mistyped" are different operator mistakes.
func ResolveAnswer(rowNo int, raw string, options map[string]string) (string, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return firstOptionKey(options), ""
	}

	normalized := strings.ToUpper(trimmed)
	normalized = strings.NewReplacer(".", "", ")", "", " ", "", "\t", "").Replace(normalized)
	if _, ok := options[normalized]; ok {
		return normalized, ""
	}

	want := strings.ToLower(trimmed)
	for _, letter := range optionLetters {
		text, ok := options[letter]
		if !ok {
			continue
		}
		if strings.ToLower(strings.TrimSpace(text)) == want {
			return letter, ""
		}
	}

	return firstOptionKey(options), fmt.Sprintf("Row %d: answer '%s' is not valid", rowNo, trimmed)
}

func classifyQuestionType(raw string) QuestionType {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(v, "uraian"), strings.Contains(v, "essay"), strings.Contains(v, "esai"):
		return TypeEssay
	case strings.Contains(v, "pilihan"), strings.Contains(v, "ganda"),
		strings.Contains(v, "multiple"), strings.Contains(v, "pg"), v == "mc":
		return TypeMultipleChoice
	default:
		return TypeMultipleChoice
	}
}

func collectOptions(get func(string) string) map[string]string {
	options := make(map[string]string, len(optionLetters))
	for _, letter := range optionLetters {
		if v := get(keyOpsiPrefix + strings.ToLower(letter)); v != "" {
			options[letter] = v
		}
	}
	return options
}

// firstOptionKey returns the lowest option letter present, the fallback key
// used when the stated answer cannot be resolved.
func firstOptionKey(options map[string]string) string {
	for _, letter := range optionLetters {
		if _, ok := options[letter]; ok {
			return letter
		}
	}
	return ""
}

func parsePoints(raw string, qType QuestionType) int {
	fallback := defaultPointsMultipleChoice
	if qType == TypeEssay {
		fallback = defaultPointsEssay
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
