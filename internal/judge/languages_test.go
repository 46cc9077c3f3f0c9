package judge

import "testing"

func TestLanguageID(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"php", 68},
		{"python", 71},
		{"javascript", 63},
		{"typescript", 74},
		{"java", 62},
		{"c", 50},
		{"cpp", 54},
		{"csharp", 51},
		{"go", 60},
		{"rust", 73},
		{"ruby", 72},
		{" Java ", 62},
		{"elixir", DefaultLanguageID},
		{"", DefaultLanguageID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LanguageID(tt.name); got != tt.want {
				t.Errorf("LanguageID(%q) = %d; want %d", tt.name, got, tt.want)
			}
		})
	}
}

func TestLanguages(t *testing.T) {
	langs := Languages()
	if len(langs) != 11 {
		t.Fatalf("len(Languages()) = %d; want 11", len(langs))
	}
	for i := 1; i < len(langs); i++ {
		if langs[i-1].Name >= langs[i].Name {
			t.Errorf("languages not sorted: %q before %q", langs[i-1].Name, langs[i].Name)
		}
	}
	if DefaultLanguageID != 71 || MultiFileLanguageID != 89 {
		t.Errorf("reserved ids changed: default=%d multi=%d", DefaultLanguageID, MultiFileLanguageID)
	}
}
