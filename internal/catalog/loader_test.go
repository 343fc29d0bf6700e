package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rma-advocacia/client-portal/internal/engagement"
	"github.com/rma-advocacia/client-portal/internal/models"
)

func TestLoadCatalogFromDir(t *testing.T) {
	// Use the shipped catalog directory
	catalogDir := filepath.Join("..", "..", "catalog")

	if _, err := os.Stat(catalogDir); os.IsNotExist(err) {
		t.Skip("catalog directory not found, skipping")
	}

	loader := NewLoader()
	if err := loader.LoadFromDir(catalogDir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	offering, err := loader.Offering("acordo_quotistas")
	if err != nil {
		t.Fatalf("acordo_quotistas not found: %v", err)
	}
	if offering.Name != "Acordo de Quotistas" {
		t.Errorf("unexpected name: %s", offering.Name)
	}
	if !strings.HasPrefix(offering.Scope, "Estruturação completa") {
		t.Errorf("unexpected scope: %s", offering.Scope)
	}
	if len(offering.Stages) != 8 {
		t.Fatalf("expected 8 stages, got %d", len(offering.Stages))
	}
	if offering.Stages[0].Name != "Primeira reunião" {
		t.Errorf("expected first stage 'Primeira reunião', got '%s'", offering.Stages[0].Name)
	}
	if len(offering.RequiredDocuments) != 4 {
		t.Errorf("expected 4 required documents, got %d", len(offering.RequiredDocuments))
	}

	// Every shipped offering must add up to 100
	for _, o := range loader.List() {
		if o.TotalWeight() != 100 {
			t.Errorf("offering %s weights sum to %d", o.ID, o.TotalWeight())
		}
	}
}

func TestLoadFromDir_SkipsClientsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", validOffering("a"))
	writeFile(t, dir, "clients.yaml", "clients: []\n")

	loader := NewLoader()
	if err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if loader.Len() != 1 {
		t.Errorf("expected 1 offering, got %d", loader.Len())
	}
}

func TestLoadFromDir_Empty(t *testing.T) {
	err := NewLoader().LoadFromDir(t.TempDir())
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestLoadFromDir_FailsFast(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "weights do not sum to 100",
			content: `id: bad
stages:
  - {name: Primeira reunião, weight: 50}
  - {name: Entrega final, weight: 40}
`,
			want: "sum to 90",
		},
		{
			name: "gate stage missing",
			content: `id: bad
stages:
  - {name: Primeira reunião, weight: 50}
  - {name: Entrega final, weight: 50}
gates: [documents]
`,
			want: "requires stage",
		},
		{
			name: "unknown gate",
			content: `id: bad
stages:
  - {name: Entrega final, weight: 100}
gates: [signature]
`,
			want: "unknown gate",
		},
		{
			name: "duplicate stage",
			content: `id: bad
stages:
  - {name: Entrega final, weight: 50}
  - {name: Entrega final, weight: 50}
`,
			want: "duplicate stage",
		},
		{
			name:    "missing id",
			content: "stages:\n  - {name: Entrega final, weight: 100}\n",
			want:    "id is required",
		},
		{
			name:    "malformed yaml",
			content: "id: [unterminated\n",
			want:    "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "offering.yaml", tt.content)

			err := NewLoader().LoadFromDir(dir)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestOffering_UnknownIsNotFound(t *testing.T) {
	loader := NewLoader()

	_, err := loader.Offering("lgpd")
	if !errors.Is(err, engagement.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := loader.StageTemplates("lgpd"); !errors.Is(err, engagement.ErrNotFound) {
		t.Errorf("StageTemplates: expected not found, got %v", err)
	}
	if _, err := loader.RequiredDocuments("lgpd"); !errors.Is(err, engagement.ErrNotFound) {
		t.Errorf("RequiredDocuments: expected not found, got %v", err)
	}
}

func TestOffering_ReturnsCopy(t *testing.T) {
	loader := NewLoader()
	dir := t.TempDir()
	writeFile(t, dir, "due_diligence.yaml", validOffering("due_diligence"))
	if err := loader.LoadFromDir(dir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	o, _ := loader.Offering("due_diligence")
	o.Stages[0].Weight = 99
	o.RequiredDocuments[0] = "tampered"

	again, _ := loader.Offering("due_diligence")
	if again.Stages[0].Weight == 99 || again.RequiredDocuments[0] == "tampered" {
		t.Error("catalog data was mutated through a returned offering")
	}
	if again.Name != "Due Diligence" {
		t.Errorf("expected derived name 'Due Diligence', got '%s'", again.Name)
	}
}

func TestAdd_Duplicate(t *testing.T) {
	loader := NewLoader()
	o := &models.ServiceOffering{ID: "x", Stages: []models.StageTemplate{{Name: "Entrega", Weight: 100}}}
	if err := loader.Add(o); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := loader.Add(o); err == nil {
		t.Error("expected duplicate error")
	}
}

func validOffering(id string) string {
	return "id: " + id + `
scope: Análise jurídica
stages:
  - {name: Primeira reunião, weight: 10}
  - {name: Documentação completa, weight: 40}
  - {name: Entrega final, weight: 50}
required_documents: [Contrato Social]
gates: [documents]
`
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
