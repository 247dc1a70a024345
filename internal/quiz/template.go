package quiz

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TemplateFilename is the fixed download name for the import template.
const TemplateFilename = "Template_Soal_Quiz.xlsx"

const (
	templateDataSheet  = "Soal"
	templateHelpSheet  = "Petunjuk"
	templateColumnSpan = "J"
)

// templateHeaders must stay in lockstep with the parser's canonical keys:
// every required key the parser recognizes appears here, and every example
// row below must survive ParseRows and Validate without errors.
var templateHeaders = []string{
	"No", "Tipe", "Pertanyaan", "Opsi_A", "Opsi_B", "Opsi_C", "Opsi_D",
	"Jawaban", "Poin", "Penjelasan",
}

var templateExamples = [][]any{
	{1, "pilihan_ganda", "Berapa hasil dari 7 x 8?", "54", "56", "63", "64", "B", 10, "7 x 8 = 56"},
	{2, "pilihan_ganda", "Dokumen apa yang wajib dibaca sebelum mulai bekerja?", "Panduan Keselamatan Kerja", "Brosur produk", "Laporan tahunan", "Notulen rapat", "Panduan Keselamatan Kerja", 10, ""},
	{3, "pilihan_ganda", "Siapa yang harus dihubungi saat terjadi insiden di lantai produksi?", "Supervisor shift", "Bagian pemasaran", "Resepsionis", "", "A.", 15, "Eskalasi insiden selalu lewat supervisor shift."},
	{4, "uraian", "Jelaskan langkah-langkah evakuasi saat alarm kebakaran berbunyi.", "", "", "", "", "Keluar lewat jalur evakuasi, berkumpul di titik kumpul, lapor ke koordinator.", 20, ""},
}

var templateInstructions = []string{
	"Petunjuk pengisian template soal quiz:",
	"",
	"1. Isi soal pada sheet 'Soal', satu baris per soal. Jangan mengubah baris header.",
	"2. Kolom wajib: Pertanyaan. Kolom Tipe, Jawaban, Poin, dan Penjelasan opsional.",
	"3. Tipe soal yang dikenali: 'pilihan_ganda' (atau 'pg', 'multiple choice') dan 'uraian' (atau 'essay').",
	"   Baris tanpa Tipe dianggap pilihan ganda.",
	"4. Soal pilihan ganda minimal mengisi 2 kolom opsi (Opsi_A .. Opsi_D).",
	"5. Jawaban pilihan ganda boleh berupa huruf opsi (A, B, C, D) atau teks opsi yang sama persis.",
	"6. Jawaban uraian berupa teks referensi penilaian, boleh dikosongkan.",
	"7. Poin kosong otomatis diisi 10 (pilihan ganda) atau 20 (uraian).",
	"8. Baris dengan kolom Pertanyaan kosong dilewati saat import.",
}

// BuildTemplate produces the downloadable import template: a data sheet with
// worked examples plus an instruction sheet.
func BuildTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), templateDataSheet); err != nil {
		return nil, fmt.Errorf("rename data sheet: %w", err)
	}

	for i, h := range templateHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(templateDataSheet, cell, h)
	}
	for rowIdx, example := range templateExamples {
		for colIdx, v := range example {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			_ = f.SetCellValue(templateDataSheet, cell, v)
		}
	}
	_ = f.SetColWidth(templateDataSheet, "A", templateColumnSpan, 24)

	if _, err := f.NewSheet(templateHelpSheet); err != nil {
		return nil, fmt.Errorf("create instruction sheet: %w", err)
	}
	for i, line := range templateInstructions {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = f.SetCellValue(templateHelpSheet, cell, line)
	}
	_ = f.SetColWidth(templateHelpSheet, "A", "A", 100)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
