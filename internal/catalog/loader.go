package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rma-advocacia/client-portal/internal/engagement"
	"github.com/rma-advocacia/client-portal/internal/models"
)

// ErrEmptyCatalog is returned when a directory holds no offerings
var ErrEmptyCatalog = errors.New("catalog has no offerings")

// Loader manages loading and lookup of service offerings
type Loader struct {
	mu        sync.RWMutex
	offerings map[string]*models.ServiceOffering
}

// NewLoader creates an empty catalog
func NewLoader() *Loader {
	return &Loader{
		offerings: make(map[string]*models.ServiceOffering),
	}
}

// LoadFromDir loads every offering YAML file in dir.
// Any invalid offering fails the whole load.
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading catalog from directory", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("failed to list catalog files: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		// The client directory may live next to the offerings
		base := strings.ToLower(filepath.Base(file))
		if base == "clients.yaml" || base == "clients.yml" {
			continue
		}

		if err := l.LoadFromFile(file); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		loaded++
	}

	if loaded == 0 {
		return ErrEmptyCatalog
	}

	slog.Info("catalog loaded", "offerings", loaded)
	return nil
}

// LoadFromFile loads a single offering from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var of offeringFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	offering := &models.ServiceOffering{
		ID:                strings.TrimSpace(of.ID),
		Name:              of.Name,
		Scope:             strings.TrimSpace(of.Scope),
		Stages:            of.Stages,
		RequiredDocuments: of.RequiredDocuments,
		Gates:             of.Gates,
	}

	// Display name falls back to the id ("acordo_quotistas" -> "Acordo Quotistas")
	if offering.Name == "" {
		offering.Name = displayName(offering.ID)
	}

	if err := l.Add(offering); err != nil {
		return err
	}

	slog.Info("offering loaded",
		"id", offering.ID,
		"stages", len(offering.Stages),
		"documents", len(offering.RequiredDocuments),
		"gates", offering.Gates,
	)
	return nil
}

// Add validates and registers an offering
func (l *Loader) Add(offering *models.ServiceOffering) error {
	if err := Validate(offering); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.offerings[offering.ID]; exists {
		return fmt.Errorf("duplicate offering id %q", offering.ID)
	}
	l.offerings[offering.ID] = offering.Clone()
	return nil
}

// Offering returns a copy of the offering, or a NotFound error
func (l *Loader) Offering(id string) (*models.ServiceOffering, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.offerings[id]
	if !ok {
		return nil, &engagement.NotFoundError{Kind: engagement.KindOffering, Ref: id}
	}
	return o.Clone(), nil
}

// StageTemplates returns the ordered stage list of an offering
func (l *Loader) StageTemplates(id string) ([]models.StageTemplate, error) {
	o, err := l.Offering(id)
	if err != nil {
		return nil, err
	}
	return o.Stages, nil
}

// RequiredDocuments returns the document names an offering requires
func (l *Loader) RequiredDocuments(id string) ([]string, error) {
	o, err := l.Offering(id)
	if err != nil {
		return nil, err
	}
	return o.RequiredDocuments, nil
}

// Has reports whether an offering id is known
func (l *Loader) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.offerings[id]
	return ok
}

// List returns all offerings sorted by id
func (l *Loader) List() []*models.ServiceOffering {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.ServiceOffering, 0, len(l.offerings))
	for _, o := range l.offerings {
		result = append(result, o.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Summaries returns the list view of all offerings
func (l *Loader) Summaries() []*models.OfferingSummary {
	offerings := l.List()
	result := make([]*models.OfferingSummary, 0, len(offerings))
	for _, o := range offerings {
		result = append(result, Summarize(o))
	}
	return result
}

// Len returns the number of loaded offerings
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.offerings)
}

// Summarize builds the list view of a single offering
func Summarize(o *models.ServiceOffering) *models.OfferingSummary {
	return &models.OfferingSummary{
		ID:          o.ID,
		Name:        o.Name,
		Scope:       o.Scope,
		StagesCount: len(o.Stages),
		DocsCount:   len(o.RequiredDocuments),
	}
}

func displayName(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// --- YAML file structs ---

// offeringFile represents the YAML structure of an offering file
type offeringFile struct {
	ID                string                 `yaml:"id"`
	Name              string                 `yaml:"name"`
	Scope             string                 `yaml:"scope"`
	Stages            []models.StageTemplate `yaml:"stages"`
	RequiredDocuments []string               `yaml:"required_documents"`
	Gates             []string               `yaml:"gates"`
}
