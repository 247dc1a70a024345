package observability

import "testing"

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/v1/quizzes/123/questions/9")
	want := "/api/v1/quizzes/{id}/questions/{id}"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
}

func TestExtractQuizID(t *testing.T) {
	if id := extractQuizID("/api/v1/quizzes/456"); id != 456 {
		t.Fatalf("expected 456, got %d", id)
	}
	if id := extractQuizID("/api/v1/modules/1"); id != 0 {
		t.Fatalf("expected 0 for non-quiz path, got %d", id)
	}
}
