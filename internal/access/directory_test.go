package access

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type offeringSet map[string]bool

func (s offeringSet) Has(id string) bool { return s[id] }

func writeClients(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDirectory_LoadAndLookup(t *testing.T) {
	path := writeClients(t, `clients:
  - access_code: XPTO123
    company: XPTO LTDA
    tax_id: 00.000.000/0001-00
    entity_type: Sociedade Limitada
    service: acordo_quotistas
    account_manager: Rodrigo Alexandre
`)

	dir := NewDirectory()
	require.NoError(t, dir.LoadFromFile(path, offeringSet{"acordo_quotistas": true}))
	assert.Equal(t, 1, dir.Len())

	client, err := dir.Lookup("XPTO123")
	require.NoError(t, err)
	assert.Equal(t, "XPTO LTDA", client.Company)
	assert.Equal(t, "acordo_quotistas", client.ServiceID)
	assert.Equal(t, "XPTO123", client.ID())

	_, err = dir.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestDirectory_UnknownService(t *testing.T) {
	path := writeClients(t, `clients:
  - access_code: ABC999
    service: lgpd
`)

	err := NewDirectory().LoadFromFile(path, offeringSet{"acordo_quotistas": true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")
}

func TestDirectory_DuplicateAndEmptyCodes(t *testing.T) {
	cat := offeringSet{"acordo_quotistas": true}

	dup := writeClients(t, `clients:
  - {access_code: ABC999, service: acordo_quotistas}
  - {access_code: ABC999, service: acordo_quotistas}
`)
	err := NewDirectory().LoadFromFile(dup, cat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate access code")
	assert.NotContains(t, err.Error(), "ABC999")

	empty := writeClients(t, `clients:
  - {access_code: "  ", service: acordo_quotistas}
`)
	assert.Error(t, NewDirectory().LoadFromFile(empty, cat))
}

func TestDirectory_LookupReturnsCopy(t *testing.T) {
	dir := NewDirectory()
	require.NoError(t, dir.LoadFromFile(writeClients(t, `clients:
  - {access_code: XPTO123, company: XPTO LTDA, service: acordo_quotistas}
`), nil))

	c, err := dir.Lookup("XPTO123")
	require.NoError(t, err)
	c.Company = "changed"

	again, _ := dir.Lookup("XPTO123")
	assert.Equal(t, "XPTO LTDA", again.Company)
}
