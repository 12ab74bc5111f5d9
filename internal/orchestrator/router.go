package orchestrator

import (
	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/models"
)

// defaultRoutes maps each task type to its preferred model chain, ordered
// primary first. Chains favor the code specialist for generation, cheap fast
// models for prose tasks, and reasoning models for debugging/optimization.
var defaultRoutes = map[models.TaskType][]string{
	models.TaskCodeGeneration:   {models.ModelCodestral, models.ModelGPT4o, models.ModelGPT4oMini},
	models.TaskCodeExplanation:  {models.ModelGPT4oMini, models.ModelCommandR, models.ModelGPT4o},
	models.TaskErrorFixing:      {models.ModelGPT4o, models.ModelO1Mini, models.ModelLlama70B},
	models.TaskRefactoring:      {models.ModelGPT4o, models.ModelLlama70B, models.ModelCodestral},
	models.TaskDocumentation:    {models.ModelCommandR, models.ModelGPT4oMini, models.ModelCommandRPlus},
	models.TaskTestGeneration:   {models.ModelCodestral, models.ModelGPT4o, models.ModelMistralLarge},
	models.TaskCodeOptimization: {models.ModelO1Mini, models.ModelGPT4o, models.ModelCodestral},
	models.TaskSecurityAnalysis: {models.ModelMistralLarge, models.ModelO1Preview, models.ModelGPT4o},
}

// buildRoutes merges the built-in routing table with config overrides. A
// task_routing entry promotes the chosen model to the front of the chain; the
// general task uses the configured primary/fallback pair.
func buildRoutes(cfg config.ModelsConfig) map[models.TaskType][]string {
	routes := make(map[models.TaskType][]string, len(defaultRoutes)+1)
	for task, chain := range defaultRoutes {
		routes[task] = append([]string(nil), chain...)
	}
	routes[models.TaskGeneral] = dedupe([]string{cfg.Primary, cfg.Fallback})

	for taskName, model := range cfg.TaskRouting {
		task := models.TaskType(taskName)
		if !task.Valid() {
			continue
		}
		if _, known := models.Lookup(model); !known {
			continue
		}
		routes[task] = dedupe(append([]string{model}, routes[task]...))
	}

	return routes
}

func dedupe(chain []string) []string {
	seen := make(map[string]bool, len(chain))
	out := chain[:0]
	for _, m := range chain {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
