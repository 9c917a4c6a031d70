package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CodeLensApp/CodeLens/internal/pkg/jsonrepair"
)

// Service runs the AI-backed operations: extraction, generation and
// debugging. Each call goes prompt -> provider -> repair -> parse ->
// required-fields validation; the typed result is returned to the handler and
// discarded with the request.
type Service struct {
	completer Completer
}

// NewService creates an AI operations service from an injected completer.
func NewService(completer Completer) *Service {
	return &Service{completer: completer}
}

// NewServiceFromEnv creates the service with the real provider client.
func NewServiceFromEnv() *Service {
	return NewService(NewOpenAIClientFromEnv())
}

// ExtractProblem turns problem screenshots into a structured problem record.
func (s *Service) ExtractProblem(ctx context.Context, images []string, language string) (*ExtractedProblem, error) {
	text, err := s.completer.CompleteWithImages(ctx, extractionPrompt(language), images)
	if err != nil {
		return nil, err
	}

	obj, err := parsePayload(text)
	if err != nil {
		return nil, err
	}
	if err := requireFields(obj, extractRequiredFields...); err != nil {
		return nil, err
	}

	var problem ExtractedProblem
	if err := decodeInto(obj, &problem); err != nil {
		return nil, err
	}
	return &problem, nil
}

// GenerateSolution produces a solution for an extracted problem via
// schema-constrained structured completion.
func (s *Service) GenerateSolution(ctx context.Context, problem *ProblemInfo) (*GeneratedSolution, error) {
	text, err := s.completer.CompleteStructured(ctx, generationSystemPrompt, generationPrompt(problem), solutionSchema)
	if err != nil {
		return nil, err
	}
	return parseSolution(text)
}

// DebugSolution improves a solution from error screenshots.
func (s *Service) DebugSolution(ctx context.Context, images []string, problem *ProblemInfo, language string) (*GeneratedSolution, error) {
	text, err := s.completer.CompleteWithImages(ctx, debugPrompt(problem, language), images)
	if err != nil {
		return nil, err
	}
	return parseSolution(text)
}

func parseSolution(text string) (*GeneratedSolution, error) {
	obj, err := parsePayload(text)
	if err != nil {
		return nil, err
	}
	if err := validateSolution(obj); err != nil {
		return nil, err
	}

	var solution GeneratedSolution
	if err := decodeInto(obj, &solution); err != nil {
		return nil, err
	}
	return &solution, nil
}

// parsePayload repairs near-JSON model output and parses it. Repair never
// fails on its own; an unparseable result surfaces here as the single
// ErrUnrecoverableFormat path.
func parsePayload(text string) (map[string]any, error) {
	cleaned := jsonrepair.Repair(text)
	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecoverableFormat, err)
	}
	return obj, nil
}

func decodeInto(obj map[string]any, out any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return nil
}
