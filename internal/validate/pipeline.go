package validate

// Pipeline runs a fixed sequence of validators over a proposed call list,
// stopping at the first stage that produces a hard failure. Downstream
// stages see whatever corrections the upstream stages applied; warnings
// accumulate across every stage that ran.
type Pipeline struct {
	stages []Validator
}

// NewPipeline builds a pipeline that runs stages in order.
func NewPipeline(stages ...Validator) *Pipeline {
	return &Pipeline{stages: stages}
}

// DefaultPipeline builds the standard Format -> History -> Schema ->
// MCP-sync chain.
func DefaultPipeline(cat Catalog, history History, states ProviderStates, repeatThreshold, failureThreshold int) *Pipeline {
	return NewPipeline(
		NewFormatValidator(),
		NewHistoryValidator(history, repeatThreshold, failureThreshold),
		NewSchemaValidator(cat),
		NewMCPSyncValidator(cat, states),
	)
}

// Run executes every stage in order against calls, short-circuiting on
// the first hard failure.
func (p *Pipeline) Run(calls []ToolCall) Result {
	final := Result{Valid: true}
	current := calls

	for _, stage := range p.stages {
		res := stage.Validate(current)
		final.Errors = append(final.Errors, res.Errors...)
		final.Warnings = append(final.Warnings, res.Warnings...)

		if !res.Valid {
			final.Valid = false
			final.CorrectedCalls = current
			return final
		}

		if res.CorrectedCalls != nil {
			current = res.CorrectedCalls
		}
	}

	final.CorrectedCalls = current
	return final
}
