package models

// Client is the verified identity behind an access code.
// Supplied by the client directory; the portal trusts it as given.
type Client struct {
	AccessCode     string `json:"-"` // Never serialize
	Company        string `json:"company"`
	TaxID          string `json:"tax_id"`
	EntityType     string `json:"entity_type"`
	ServiceID      string `json:"service"`
	AccountManager string `json:"account_manager"`
}

// ID returns the key used for the client's engagement session
func (c *Client) ID() string {
	return c.AccessCode
}

// MaskedCode returns first 3 characters of the access code for logging
func (c *Client) MaskedCode() string {
	return MaskCode(c.AccessCode)
}

// MaskCode hides all but the first 3 characters of an access code
func MaskCode(code string) string {
	if len(code) < 6 {
		return "***"
	}
	return code[:3] + "***"
}
