package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CodeLensApp/CodeLens/app/models"
	"github.com/CodeLensApp/CodeLens/internal/pkg/ai"
	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
	"github.com/CodeLensApp/CodeLens/internal/pkg/imageprep"
)

const extractionCacheTTL = time.Hour

// aiOperations is the slice of the AI service the controller needs.
type aiOperations interface {
	ExtractProblem(ctx context.Context, images []string, language string) (*ai.ExtractedProblem, error)
	GenerateSolution(ctx context.Context, problem *ai.ProblemInfo) (*ai.GeneratedSolution, error)
	DebugSolution(ctx context.Context, images []string, problem *ai.ProblemInfo, language string) (*ai.GeneratedSolution, error)
}

// creditDebiter is the slice of the billing service the controller needs.
type creditDebiter interface {
	Debit(ctx context.Context, email string, amount int64) error
	GetAccount(ctx context.Context, email string) (*models.Subscription, error)
}

// resultCache memoizes extraction results. A nil cache disables memoization.
type resultCache interface {
	Get(key string) (string, error)
	Set(key string, value interface{}, expiration time.Duration) error
}

// AIController serves the screenshot-to-solution operations
type AIController struct {
	ops     aiOperations
	credits creditDebiter
	cache   resultCache
	usage   func(email string)
}

// NewAIController wires the AI operations controller. cache and usage may be
// nil; the operations then run without memoization or usage metering.
func NewAIController(ops aiOperations, credits creditDebiter, cache resultCache, usage func(email string)) *AIController {
	return &AIController{ops: ops, credits: credits, cache: cache, usage: usage}
}

type extractRequest struct {
	ImageDataList []string `json:"imageDataList" validate:"required,min=1"`
	Language      string   `json:"language" validate:"required"`
}

type debugRequest struct {
	ImageDataList []string        `json:"imageDataList" validate:"required,min=1"`
	ProblemInfo   *ai.ProblemInfo `json:"problemInfo" validate:"required"`
	Language      string          `json:"language" validate:"required"`
}

// HandleExtract extracts a structured problem from screenshots
func (ac *AIController) HandleExtract(c *fiber.Ctx) error {
	email, err := requireUserEmail(c)
	if err != nil {
		return err
	}

	var req extractRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	for _, img := range req.ImageDataList {
		if !imageprep.IsValidPayload(img) {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid image format. Must be base64 encoded string")
		}
	}

	gated := gateEnabled("CREDITS_GATE_EXTRACT", false)
	if gated {
		if err := ac.checkCredits(c, email); err != nil {
			return err
		}
	}

	if cached, ok := ac.cachedExtraction(req); ok {
		ac.finishOperation(c, email, gated)
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	images, err := imageprep.Prepare(req.ImageDataList)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid image format. Must be base64 encoded string")
	}

	problem, err := ac.ops.ExtractProblem(c.UserContext(), images, req.Language)
	if err != nil {
		return mapAIError(c, err)
	}

	ac.storeExtraction(req, problem)
	ac.finishOperation(c, email, gated)
	return c.JSON(problem)
}

// HandleGenerate produces a solution for an extracted problem
func (ac *AIController) HandleGenerate(c *fiber.Ctx) error {
	email, err := requireUserEmail(c)
	if err != nil {
		return err
	}

	var req ai.ProblemInfo
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if msg, ok := validateProblemInfo(&req); !ok {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", msg)
	}

	gated := gateEnabled("CREDITS_GATE_GENERATE", false)
	if gated {
		if err := ac.checkCredits(c, email); err != nil {
			return err
		}
	}

	solution, err := ac.ops.GenerateSolution(c.UserContext(), &req)
	if err != nil {
		return mapAIError(c, err)
	}

	ac.finishOperation(c, email, gated)
	return c.JSON(solution)
}

// HandleDebug improves a solution from error screenshots. This operation is
// credit gated by default.
func (ac *AIController) HandleDebug(c *fiber.Ctx) error {
	email, err := requireUserEmail(c)
	if err != nil {
		return err
	}

	var req debugRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	for _, img := range req.ImageDataList {
		if !imageprep.IsValidPayload(img) {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid image format. Must be base64 encoded string")
		}
	}

	gated := gateEnabled("CREDITS_GATE_DEBUG", true)
	if gated {
		if err := ac.checkCredits(c, email); err != nil {
			return err
		}
	}

	images, err := imageprep.Prepare(req.ImageDataList)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid image format. Must be base64 encoded string")
	}

	solution, err := ac.ops.DebugSolution(c.UserContext(), images, req.ProblemInfo, req.Language)
	if err != nil {
		return mapAIError(c, err)
	}

	ac.finishOperation(c, email, gated)
	return c.JSON(solution)
}

// checkCredits rejects gated operations before any upstream spend when the
// account has no balance. The authoritative decrement happens after success.
func (ac *AIController) checkCredits(c *fiber.Ctx, email string) error {
	if ac.credits == nil {
		return nil
	}
	account, err := ac.credits.GetAccount(c.UserContext(), email)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load credit balance")
	}
	if account == nil || account.Credits < 1 {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "API Key out of credits")
	}
	return nil
}

// finishOperation debits gated operations and meters usage. The result has
// already been produced at this point, so a lost debit race is logged rather
// than surfaced.
func (ac *AIController) finishOperation(c *fiber.Ctx, email string, gated bool) {
	if gated && ac.credits != nil {
		if err := ac.credits.Debit(c.UserContext(), email, 1); err != nil {
			log.Printf("credit debit failed for %s: %v", email, err)
		}
	}
	if ac.usage != nil {
		ac.usage(email)
	}
}

func (ac *AIController) cachedExtraction(req extractRequest) (string, bool) {
	if ac.cache == nil {
		return "", false
	}
	cached, err := ac.cache.Get(extractionCacheKey(req))
	if err != nil || cached == "" {
		return "", false
	}
	return cached, true
}

func (ac *AIController) storeExtraction(req extractRequest, problem *ai.ExtractedProblem) {
	if ac.cache == nil {
		return
	}
	raw, err := json.Marshal(problem)
	if err != nil {
		return
	}
	if err := ac.cache.Set(extractionCacheKey(req), string(raw), extractionCacheTTL); err != nil {
		log.Printf("extraction cache write failed: %v", err)
	}
}

// extractionCacheKey hashes the language and image payloads so identical
// retries skip the provider call.
func extractionCacheKey(req extractRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Language))
	for _, img := range req.ImageDataList {
		h.Write([]byte{0})
		h.Write([]byte(img))
	}
	return "ai:extract:" + hex.EncodeToString(h.Sum(nil))
}

// validateProblemInfo mirrors the structural checks the generation prompt
// relies on; everything missing here is a client error.
func validateProblemInfo(p *ai.ProblemInfo) (string, bool) {
	switch {
	case p.ProblemStatement == "":
		return "Missing required field: problem_statement", false
	case p.Language == "":
		return "Missing required field: language", false
	case p.ValidationType == "":
		return "Missing required field: validation_type", false
	case p.Difficulty == "":
		return "Missing required field: difficulty", false
	case p.InputFormat.Description == "" || p.InputFormat.Parameters == nil:
		return "Invalid input_format structure", false
	case p.OutputFormat.Description == "" || p.OutputFormat.Type == "":
		return "Invalid output_format structure", false
	case p.Complexity.Time == "" || p.Complexity.Space == "":
		return "Invalid complexity structure", false
	case p.TestCases == nil:
		return "test_cases must be an array", false
	}
	return "", true
}

func gateEnabled(key string, def bool) bool {
	return env.GetEnvBool(key, def)
}
