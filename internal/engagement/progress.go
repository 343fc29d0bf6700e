package engagement

import "github.com/rma-advocacia/client-portal/internal/models"

// StageProjectCompleted is reported as the current stage once nothing is left
const StageProjectCompleted = "Projeto concluído"

// CompletionPercentage sums the weights of completed stages.
// Always recomputed; the catalog guarantees the result is within 0..100.
func CompletionPercentage(e *models.Engagement) int {
	total := 0
	for _, st := range e.Stages {
		if st.Completed {
			total += st.Weight
		}
	}
	return total
}

// CurrentStageName returns the first incomplete stage in template order.
// Ties are broken by position only, never by weight or name.
func CurrentStageName(e *models.Engagement) string {
	for _, st := range e.Stages {
		if !st.Completed {
			return st.Name
		}
	}
	return StageProjectCompleted
}

// ProgressOf returns both derived values at once
func ProgressOf(e *models.Engagement) models.Progress {
	return models.Progress{
		CompletionPercentage: CompletionPercentage(e),
		CurrentStage:         CurrentStageName(e),
	}
}
