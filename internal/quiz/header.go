package quiz

import "strings"

// Canonical column keys the parser understands. Headers are matched by
// name (with synonyms), never by position.
const (
	keyNo          = "no"
	keyTipe        = "tipe"
	keyPertanyaan  = "pertanyaan"
	keyJawaban     = "jawaban"
	keyPoin        = "poin"
	keyPenjelasan  = "penjelasan"
	keyOpsiPrefix  = "opsi_"
	headerScanRows = 5
)

var optionLetters = []string{"A", "B", "C", "D", "E"}

// headerSynonyms folds human variants (Indonesian and English) into the
// canonical key set. Unknown headers pass through as their own key.
var headerSynonyms = map[string]string{
	"nomor":          keyNo,
	"number":         keyNo,
	"jenis":          keyTipe,
	"type":           keyTipe,
	"question_type":  keyTipe,
	"tipe_soal":      keyTipe,
	"soal":           keyPertanyaan,
	"question":       keyPertanyaan,
	"question_text":  keyPertanyaan,
	"kunci":          keyJawaban,
	"kunci_jawaban":  keyJawaban,
	"answer":         keyJawaban,
	"correct_answer": keyJawaban,
	"points":         keyPoin,
	"score":          keyPoin,
	"skor":           keyPoin,
	"nilai":          keyPoin,
	"bobot":          keyPoin,
	"explanation":    keyPenjelasan,
	"pembahasan":     keyPenjelasan,
}

func init() {
	for _, letter := range optionLetters {
		l := strings.ToLower(letter)
		headerSynonyms["option_"+l] = keyOpsiPrefix + l
		headerSynonyms["pilihan_"+l] = keyOpsiPrefix + l
	}
}

// normalizeHeaderKey lowercases, trims, collapses internal whitespace to
// underscores and strips everything outside [a-z0-9_], then folds synonyms.
func normalizeHeaderKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Join(strings.Fields(s), "_")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	key := b.String()
	if canonical, ok := headerSynonyms[key]; ok {
		return canonical
	}
	return key
}

// FindHeaderRow scans the first few rows for something that looks like the
// header: a cell containing "pertanyaan" or equal to "no". Falls back to
// row 0 so parsing never fails at this stage.
func FindHeaderRow(rows [][]string) int {
	limit := headerScanRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			c := strings.ToLower(strings.TrimSpace(cell))
			if strings.Contains(c, keyPertanyaan) || c == keyNo {
				return i
			}
		}
	}
	return 0
}

// BuildHeaderMap maps each canonical key to its column index. The first
// occurrence of a key wins; keys never map to more than one column.
func BuildHeaderMap(headerRow []string) map[string]int {
	header := make(map[string]int, len(headerRow))
	for i, cell := range headerRow {
		key := normalizeHeaderKey(cell)
		if key == "" {
			continue
		}
		if _, exists := header[key]; !exists {
			header[key] = i
		}
	}
	return header
}
