package access

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// ErrUnknownClient is returned for an access code nobody holds
var ErrUnknownClient = errors.New("unknown access code")

// OfferingChecker reports whether a service id exists in the catalog
type OfferingChecker interface {
	Has(id string) bool
}

// Directory maps access codes to verified client identities
type Directory struct {
	mu      sync.RWMutex
	clients map[string]*models.Client
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{clients: make(map[string]*models.Client)}
}

// LoadFromFile loads clients from YAML and checks each against the catalog
func (d *Directory) LoadFromFile(path string, catalog OfferingChecker) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read clients file: %w", err)
	}

	var cf clientsFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse clients file: %w", err)
	}

	for i, entry := range cf.Clients {
		client := &models.Client{
			AccessCode:     strings.TrimSpace(entry.AccessCode),
			Company:        entry.Company,
			TaxID:          entry.TaxID,
			EntityType:     entry.EntityType,
			ServiceID:      entry.Service,
			AccountManager: entry.AccountManager,
		}
		if err := d.Add(client, catalog); err != nil {
			return fmt.Errorf("client #%d: %w", i+1, err)
		}
	}

	slog.Info("client directory loaded", "clients", len(cf.Clients))
	return nil
}

// Add registers a client after validating its code and service
func (d *Directory) Add(client *models.Client, catalog OfferingChecker) error {
	if client.AccessCode == "" {
		return errors.New("access code is required")
	}
	if catalog != nil && !catalog.Has(client.ServiceID) {
		return fmt.Errorf("client %s references unknown service %q", client.MaskedCode(), client.ServiceID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.clients[client.AccessCode]; exists {
		return fmt.Errorf("duplicate access code %s", client.MaskedCode())
	}
	c := *client
	d.clients[client.AccessCode] = &c
	return nil
}

// Lookup returns the client holding the access code
func (d *Directory) Lookup(code string) (*models.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	client, ok := d.clients[code]
	if !ok {
		return nil, ErrUnknownClient
	}
	c := *client
	return &c, nil
}

// Len returns the number of registered clients
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// clientsFile represents the YAML structure of the clients file
type clientsFile struct {
	Clients []struct {
		AccessCode     string `yaml:"access_code"`
		Company        string `yaml:"company"`
		TaxID          string `yaml:"tax_id"`
		EntityType     string `yaml:"entity_type"`
		Service        string `yaml:"service"`
		AccountManager string `yaml:"account_manager"`
	} `yaml:"clients"`
}
