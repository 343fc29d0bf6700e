package engagement

import (
	"fmt"

	"github.com/rma-advocacia/client-portal/internal/models"
)

// Stage names keyed by the gate table. Treated as stable identifiers.
const (
	StageDocumentsComplete = "Documentação completa"
	StagePaymentConfirmed  = "Pagamento confirmado"
)

// GatePolicy decides what a gate does once its condition stops holding
type GatePolicy string

const (
	// PolicyLatch never reverts a stage a gate completed
	PolicyLatch GatePolicy = "latch"
	// PolicyTrack reverts a gate-completed stage when the condition becomes false.
	// Stages the user completed by hand are left alone.
	PolicyTrack GatePolicy = "track"
)

// ParseGatePolicy validates a policy name; empty means latch
func ParseGatePolicy(s string) (GatePolicy, error) {
	switch GatePolicy(s) {
	case "", PolicyLatch:
		return PolicyLatch, nil
	case PolicyTrack:
		return PolicyTrack, nil
	default:
		return "", fmt.Errorf("unknown gate policy %q (want latch or track)", s)
	}
}

// Gate marks Stage complete once Satisfied holds for the engagement
type Gate struct {
	Name      string
	Stage     string
	Satisfied func(e *models.Engagement) bool
}

// Gates is the gating-rule table, evaluated in order
var Gates = []Gate{
	{Name: "documents", Stage: StageDocumentsComplete, Satisfied: AllDocumentsReceived},
	{Name: "payment", Stage: StagePaymentConfirmed, Satisfied: AllInstallmentsPaid},
}

// LookupGate returns the gate with the given name
func LookupGate(name string) (Gate, bool) {
	for _, g := range Gates {
		if g.Name == name {
			return g, true
		}
	}
	return Gate{}, false
}

// AllDocumentsReceived is vacuously true for an empty requirement set
func AllDocumentsReceived(e *models.Engagement) bool {
	for _, d := range e.Documents {
		if !d.Received {
			return false
		}
	}
	return true
}

// AllInstallmentsPaid is vacuously true when there are no installments
func AllInstallmentsPaid(e *models.Engagement) bool {
	for _, inst := range e.Installments {
		if !inst.Paid {
			return false
		}
	}
	return true
}

// ApplyGates re-evaluates every gate and returns the names of stages it changed.
// A gate fires once, when its condition goes from false to true; a stage the
// user unchecks while the condition still holds stays unchecked. The gate
// re-arms when the condition stops holding.
// It is idempotent: a second call with no mutation in between changes nothing.
// Engagements without a gate's stage are skipped for that gate.
func ApplyGates(e *models.Engagement, policy GatePolicy) []string {
	var changed []string
	for _, g := range Gates {
		st := e.FindStage(g.Stage)
		if st == nil {
			continue
		}

		satisfied := g.Satisfied(e)
		switch {
		case satisfied && !st.GateFired:
			st.GateFired = true
			if !st.Completed {
				st.Completed = true
				st.AutoCompleted = true
				changed = append(changed, st.Name)
			}
		case !satisfied && st.GateFired:
			st.GateFired = false
			if policy == PolicyTrack && st.Completed && st.AutoCompleted {
				st.Completed = false
				st.AutoCompleted = false
				changed = append(changed, st.Name)
			}
		}
	}
	return changed
}
