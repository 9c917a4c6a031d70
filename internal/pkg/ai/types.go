package ai

// InputFormat describes how a problem receives its input.
type InputFormat struct {
	Description string `json:"description"`
	Parameters  []any  `json:"parameters"`
}

// OutputFormat describes the expected answer shape.
type OutputFormat struct {
	Description string `json:"description"`
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
}

// Complexity carries the stated time/space requirements.
type Complexity struct {
	Time  string `json:"time"`
	Space string `json:"space"`
}

// ExtractedProblem is the structured result of screenshot extraction. It is
// request-scoped: built from repaired model output, returned to the caller,
// never persisted.
type ExtractedProblem struct {
	ProblemStatement string       `json:"problem_statement"`
	InputFormat      InputFormat  `json:"input_format"`
	OutputFormat     OutputFormat `json:"output_format"`
	Complexity       Complexity   `json:"complexity"`
	TestCases        []any        `json:"test_cases"`
	ValidationType   string       `json:"validation_type"`
	Difficulty       string       `json:"difficulty"`
}

// ProblemInfo is an extracted problem plus the target language, as submitted
// by generate/debug requests.
type ProblemInfo struct {
	ExtractedProblem
	Language string `json:"language"`
}

// GeneratedSolution is the structured result of generation and debugging.
type GeneratedSolution struct {
	Code            string   `json:"code"`
	Thoughts        []string `json:"thoughts"`
	TimeComplexity  string   `json:"time_complexity"`
	SpaceComplexity string   `json:"space_complexity"`
}
