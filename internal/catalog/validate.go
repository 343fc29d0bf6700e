package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rma-advocacia/client-portal/internal/engagement"
	"github.com/rma-advocacia/client-portal/internal/models"
)

// RequiredTotalWeight is what every offering's stage weights must add up to
const RequiredTotalWeight = 100

// Validate checks the invariants an offering must hold before it is served
func Validate(o *models.ServiceOffering) error {
	if o == nil {
		return errors.New("offering is nil")
	}
	if strings.TrimSpace(o.ID) == "" {
		return errors.New("offering id is required")
	}
	if len(o.Stages) == 0 {
		return fmt.Errorf("offering %q: at least one stage is required", o.ID)
	}

	seen := make(map[string]bool, len(o.Stages))
	for _, st := range o.Stages {
		if strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("offering %q: stage name is required", o.ID)
		}
		if seen[st.Name] {
			return fmt.Errorf("offering %q: duplicate stage %q", o.ID, st.Name)
		}
		seen[st.Name] = true

		if st.Weight < 0 || st.Weight > RequiredTotalWeight {
			return fmt.Errorf("offering %q: stage %q weight %d out of range 0..%d",
				o.ID, st.Name, st.Weight, RequiredTotalWeight)
		}
	}

	if total := o.TotalWeight(); total != RequiredTotalWeight {
		return fmt.Errorf("offering %q: stage weights sum to %d, want %d", o.ID, total, RequiredTotalWeight)
	}

	docs := make(map[string]bool, len(o.RequiredDocuments))
	for _, d := range o.RequiredDocuments {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("offering %q: empty required document name", o.ID)
		}
		if docs[d] {
			return fmt.Errorf("offering %q: duplicate required document %q", o.ID, d)
		}
		docs[d] = true
	}

	// A declared gate whose stage is missing would silently never fire
	for _, name := range o.Gates {
		gate, ok := engagement.LookupGate(name)
		if !ok {
			return fmt.Errorf("offering %q: unknown gate %q", o.ID, name)
		}
		if !o.HasStage(gate.Stage) {
			return fmt.Errorf("offering %q: gate %q requires stage %q", o.ID, name, gate.Stage)
		}
	}

	return nil
}
