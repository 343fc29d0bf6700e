package models

// StageTemplate is one weighted milestone in an offering's checklist
type StageTemplate struct {
	Name   string `yaml:"name" json:"name"`
	Weight int    `yaml:"weight" json:"weight"`
}

// ServiceOffering is a purchasable service type (e.g., acordo_quotistas)
type ServiceOffering struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Scope             string          `json:"scope"`
	Stages            []StageTemplate `json:"stages"`
	RequiredDocuments []string        `json:"required_documents"`
	Gates             []string        `json:"gates,omitempty"`
}

// TotalWeight returns the sum of all stage weights
func (o *ServiceOffering) TotalWeight() int {
	total := 0
	for _, st := range o.Stages {
		total += st.Weight
	}
	return total
}

// HasStage reports whether the offering defines a stage with the exact name
func (o *ServiceOffering) HasStage(name string) bool {
	for _, st := range o.Stages {
		if st.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate catalog data
func (o *ServiceOffering) Clone() *ServiceOffering {
	if o == nil {
		return nil
	}
	c := *o
	c.Stages = cloneSlice(o.Stages)
	c.RequiredDocuments = cloneSlice(o.RequiredDocuments)
	c.Gates = cloneSlice(o.Gates)
	return &c
}

// OfferingSummary is the list view of an offering
type OfferingSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Scope       string `json:"scope"`
	StagesCount int    `json:"stages_count"`
	DocsCount   int    `json:"documents_count"`
}
