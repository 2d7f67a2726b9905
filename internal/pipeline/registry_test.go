package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEmbeddedDefaults(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("embedded registry must load: %v", err)
	}
	if len(reg.Searches) == 0 {
		t.Fatal("embedded registry is empty")
	}

	search, err := reg.Find("voice-daily")
	if err != nil {
		t.Fatal(err)
	}
	if search.Mode != ModePerKeyword || len(search.Keywords) == 0 {
		t.Errorf("voice-daily misconfigured: %+v", search)
	}
}

func TestLoadRegistryFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searches.yaml")
	content := `searches:
  - id: custom
    name: Custom
    mode: composite
    expression: "(radar)"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Searches) != 1 || reg.Searches[0].ID != "custom" {
		t.Errorf("file override not honored: %+v", reg.Searches)
	}
	if reg.Searches[0].Prefix != "custom" {
		t.Errorf("prefix must default to the search id, got %q", reg.Searches[0].Prefix)
	}
}

func TestLoadRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "per-keyword without keywords",
			content: `searches:
  - id: broken
    mode: per-keyword
`,
		},
		{
			name: "composite without expression",
			content: `searches:
  - id: broken
    mode: composite
`,
		},
		{
			name: "unknown mode",
			content: `searches:
  - id: broken
    mode: parallel
    keywords: [x]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "searches.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRegistry(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
