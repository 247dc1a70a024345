package quiz

import (
	"strings"
	"testing"
)

var testHeader = []string{"No", "Tipe", "Pertanyaan", "Opsi_A", "Opsi_B", "Opsi_C", "Opsi_D", "Jawaban", "Poin"}

func TestParseRowsMultipleChoice(t *testing.T) {
	rows := [][]string{
		testHeader,
		{"1", "pilihan_ganda", "2+2?", "4", "5", "6", "7", "A", "10"},
	}

	result, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected zero parse errors, got %v", result.Errors)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}

	c := result.Candidates[0]
	if c.QuestionType != TypeMultipleChoice {
		t.Fatalf("expected multiple_choice, got %s", c.QuestionType)
	}
	if c.SourceRow != 2 {
		t.Fatalf("expected source_row 2, got %d", c.SourceRow)
	}
	want := map[string]string{"A": "4", "B": "5", "C": "6", "D": "7"}
	if len(c.Options) != len(want) {
		t.Fatalf("expected %d options, got %v", len(want), c.Options)
	}
	for k, v := range want {
		if c.Options[k] != v {
			t.Fatalf("option %s = %q, want %q", k, c.Options[k], v)
		}
	}
	if c.CorrectAnswer != "A" {
		t.Fatalf("expected correct answer A, got %q", c.CorrectAnswer)
	}
	if c.Points != 10 {
		t.Fatalf("expected 10 points, got %d", c.Points)
	}
}

func TestParseRowsEssay(t *testing.T) {
	rows := [][]string{
		testHeader,
		{"2", "uraian", "Explain X", "", "", "", "", "model answer", "20"},
	}

	result, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	c := result.Candidates[0]
	if c.QuestionType != TypeEssay {
		t.Fatalf("expected essay, got %s", c.QuestionType)
	}
	if c.Options != nil {
		t.Fatalf("essay candidate must not carry options, got %v", c.Options)
	}
	if c.CorrectAnswer != "model answer" {
		t.Fatalf("expected reference answer passthrough, got %q", c.CorrectAnswer)
	}
	if c.Points != 20 {
		t.Fatalf("expected 20 points, got %d", c.Points)
	}
}

func TestParseRowsInsufficientOptionsDropped(t *testing.T) {
	rows := [][]string{
		testHeader,
		{"1", "pg", "Pertanyaan dengan satu opsi", "satu-satunya", "", "", "", "A", ""},
	}

	result, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Fatalf("expected candidate to be dropped, got %d", len(result.Candidates))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected one error, got %v", result.Errors)
	}
	if want := "Row 2: multiple choice must have at least 2 options"; result.Errors[0] != want {
		t.Fatalf("error = %q, want %q", result.Errors[0], want)
	}
}

func TestParseRowsUnresolvableAnswerFallsBack(t *testing.T) {
	rows := [][]string{
		testHeader,
		{"1", "pg", "Pertanyaan dengan jawaban E", "a", "b", "c", "d", "E", ""},
	}

	result, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("candidate should still be emitted, got %d", len(result.Candidates))
	}
	if got := result.Candidates[0].CorrectAnswer; got != "A" {
		t.Fatalf("expected fallback to first option A, got %q", got)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "'E'") {
		t.Fatalf("expected one error referencing 'E', got %v", result.Errors)
	}
}

func TestParseRowsBlankAnswerSilentDefault(t *testing.T) {
	rows := [][]string{
		testHeader,
		{"1", "pg", "Pertanyaan tanpa jawaban", "a", "b", "", "", "", ""},
	}

	result, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("blank answer must not record an error, got %v", result.Errors)
	}
	if got := result.Candidates[0].CorrectAnswer; got != "A" {
		t.Fatalf("expected silent default to A, got %q", got)
	}
}

func TestParseRowsSkipsBlankAndQuestionlessRows(t *testing.T) {
	rows := [][]string{
		testHeader,
		{},
		{"", "", "", "", "", "", "", "", ""},
		{"9", "pg", "", "a", "b", "", "", "A", ""},
		{"1", "", "Baris yang valid", "a", "b", "", "", "B", "5"},
	}

	result, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("spacer rows must not record errors, got %v", result.Errors)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if got := result.Candidates[0].SourceRow; got != 5 {
		t.Fatalf("expected source_row 5, got %d", got)
	}
}

func TestParseRowsTypeDefaultsAndPointsDefaults(t *testing.T) {
	rows := [][]string{
		testHeader,
		{"1", "tebak-tebakan", "Tipe tidak dikenali", "a", "b", "", "", "A", "abc"},
		{"2", "Essay (uraian)", "Poin uraian kosong", "", "", "", "", "", ""},
	}

	result, err := ParseRows(rows)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := result.Candidates[0].QuestionType; got != TypeMultipleChoice {
		t.Fatalf("unrecognized type should default to multiple_choice, got %s", got)
	}
	if got := result.Candidates[0].Points; got != 10 {
		t.Fatalf("non-numeric points should default to 10, got %d", got)
	}
	if got := result.Candidates[1].QuestionType; got != TypeEssay {
		t.Fatalf("expected essay, got %s", got)
	}
	if got := result.Candidates[1].Points; got != 20 {
		t.Fatalf("blank essay points should default to 20, got %d", got)
	}
}

func TestParseRowsStructuralFailures(t *testing.T) {
	if _, err := ParseRows(nil); err == nil {
		t.Fatalf("expected error for empty sheet")
	}
	if _, err := ParseRows([][]string{testHeader}); err == nil {
		t.Fatalf("expected error for sheet without data rows")
	}
}

func TestResolveAnswerForms(t *testing.T) {
	options := map[string]string{"A": "Jakarta", "B": "Bandung", "C": "Surabaya"}

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain letter", raw: "B", want: "B"},
		{name: "lowercase letter", raw: "c", want: "C"},
		{name: "letter with dot", raw: "a.", want: "A"},
		{name: "letter with paren and space", raw: " B) ", want: "B"},
		{name: "full text match", raw: "surabaya", want: "C"},
		{name: "full text with spaces", raw: "  Bandung ", want: "B"},
		{name: "blank silently defaults", raw: "   ", want: "A"},
		{name: "garbage defaults with error", raw: "Z", want: "A", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, errMsg := ResolveAnswer(7, tc.raw, options)
			if got != tc.want {
				t.Fatalf("ResolveAnswer(%q) = %q, want %q", tc.raw, got, tc.want)
			}
			if tc.wantErr && errMsg == "" {
				t.Fatalf("expected error message for %q", tc.raw)
			}
			if !tc.wantErr && errMsg != "" {
				t.Fatalf("unexpected error message %q for %q", errMsg, tc.raw)
			}
		})
	}
}
