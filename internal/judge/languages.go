package judge

import (
	"sort"
	"strings"
)

// DefaultLanguageID is used for language names the judge table does not know.
const DefaultLanguageID = 71

// MultiFileLanguageID runs a bundle through its own run script.
const MultiFileLanguageID = 89

var languageIDs = map[string]int{
	"php":        68,
	"python":     71,
	"javascript": 63,
	"typescript": 74,
	"java":       62,
	"c":          50,
	"cpp":        54,
	"csharp":     51,
	"go":         60,
	"rust":       73,
	"ruby":       72,
}

// LanguageID maps a language name to the judge's numeric id. Unknown names
// fall back to DefaultLanguageID.
func LanguageID(name string) int {
	if id, ok := languageIDs[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return DefaultLanguageID
}

// Language is one entry of the language table.
type Language struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Languages lists the table sorted by name.
func Languages() []Language {
	out := make([]Language, 0, len(languageIDs))
	for name, id := range languageIDs {
		out = append(out, Language{Name: name, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
