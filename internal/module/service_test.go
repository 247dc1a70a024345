package module

import "testing"

func TestNormalizeModuleType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "document", want: "document"},
		{raw: " Dokumen ", want: "document"},
		{raw: "VIDEO", want: "video"},
		{raw: "animasi", want: "animation"},
		{raw: "animation", want: "animation"},
		{raw: "podcast", want: ""},
		{raw: "", want: ""},
	}

	for _, tc := range tests {
		if got := normalizeModuleType(tc.raw); got != tc.want {
			t.Errorf("normalizeModuleType(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
