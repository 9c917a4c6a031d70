package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeLensApp/CodeLens/app/models"
	"github.com/CodeLensApp/CodeLens/internal/pkg/ai"
	"github.com/CodeLensApp/CodeLens/internal/pkg/env"
	"github.com/CodeLensApp/CodeLens/internal/pkg/usercontext"
)

type fakeAIOps struct {
	problem  *ai.ExtractedProblem
	solution *ai.GeneratedSolution
	err      error

	extractCalls  int
	generateCalls int
	debugCalls    int
}

func (f *fakeAIOps) ExtractProblem(_ context.Context, _ []string, _ string) (*ai.ExtractedProblem, error) {
	f.extractCalls++
	return f.problem, f.err
}

func (f *fakeAIOps) GenerateSolution(_ context.Context, _ *ai.ProblemInfo) (*ai.GeneratedSolution, error) {
	f.generateCalls++
	return f.solution, f.err
}

func (f *fakeAIOps) DebugSolution(_ context.Context, _ []string, _ *ai.ProblemInfo, _ string) (*ai.GeneratedSolution, error) {
	f.debugCalls++
	return f.solution, f.err
}

type fakeCredits struct {
	account    *models.Subscription
	debitCalls int
}

func (f *fakeCredits) Debit(_ context.Context, _ string, amount int64) error {
	f.debitCalls++
	if f.account != nil {
		f.account.Credits -= amount
	}
	return nil
}

func (f *fakeCredits) GetAccount(_ context.Context, _ string) (*models.Subscription, error) {
	return f.account, nil
}

func newAITestApp(t *testing.T, ac *AIController, email string) *fiber.App {
	t.Helper()
	env.Env = map[string]string{}
	t.Cleanup(func() { env.Env = nil })

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if email != "" {
			usercontext.SetUserContext(c, usercontext.UserContext{Email: email, IsLoggedIn: true})
		}
		return c.Next()
	})
	app.Post("/api/extract", ac.HandleExtract)
	app.Post("/api/generate", ac.HandleGenerate)
	app.Post("/api/debug", ac.HandleDebug)
	return app
}

func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (int, []byte) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, payload
}

func validProblemInfo() map[string]any {
	return map[string]any{
		"problem_statement": "Return the sum of two integers.",
		"input_format":      map[string]any{"description": "two integers", "parameters": []any{}},
		"output_format":     map[string]any{"description": "their sum", "type": "integer", "subtype": ""},
		"complexity":        map[string]any{"time": "O(1)", "space": "O(1)"},
		"test_cases":        []any{map[string]any{"input": []any{1, 2}, "output": 3}},
		"validation_type":   "exact",
		"difficulty":        "easy",
		"language":          "python",
	}
}

func TestHandleExtract(t *testing.T) {
	ops := &fakeAIOps{problem: &ai.ExtractedProblem{ProblemStatement: "Sum", Difficulty: "easy"}}
	ac := NewAIController(ops, nil, nil, nil)
	app := newAITestApp(t, ac, "user@example.com")

	status, body := postJSON(t, app, "/api/extract", map[string]any{
		"imageDataList": []string{testImage(t)},
		"language":      "python",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, ops.extractCalls)

	var out ai.ExtractedProblem
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "Sum", out.ProblemStatement)
}

func TestHandleExtractValidatesBeforeUpstream(t *testing.T) {
	ops := &fakeAIOps{}
	ac := NewAIController(ops, nil, nil, nil)
	app := newAITestApp(t, ac, "user@example.com")

	// missing language
	status, _ := postJSON(t, app, "/api/extract", map[string]any{
		"imageDataList": []string{testImage(t)},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	// garbage image payload
	status, _ = postJSON(t, app, "/api/extract", map[string]any{
		"imageDataList": []string{"!!!not-base64!!!"},
		"language":      "python",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	assert.Equal(t, 0, ops.extractCalls, "upstream must not be called for invalid input")
}

func TestHandleExtractRequiresAuth(t *testing.T) {
	ops := &fakeAIOps{}
	ac := NewAIController(ops, nil, nil, nil)
	app := newAITestApp(t, ac, "")

	status, _ := postJSON(t, app, "/api/extract", map[string]any{
		"imageDataList": []string{testImage(t)},
		"language":      "python",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, 0, ops.extractCalls)
}

func TestHandleExtractUpstreamTimeout(t *testing.T) {
	ops := &fakeAIOps{err: ai.ErrUpstreamTimeout}
	ac := NewAIController(ops, nil, nil, nil)
	app := newAITestApp(t, ac, "user@example.com")

	status, _ := postJSON(t, app, "/api/extract", map[string]any{
		"imageDataList": []string{testImage(t)},
		"language":      "python",
	})
	assert.Equal(t, fiber.StatusGatewayTimeout, status)
}

func TestHandleGenerate(t *testing.T) {
	ops := &fakeAIOps{solution: &ai.GeneratedSolution{Code: "pass", Thoughts: []string{"step"}}}
	ac := NewAIController(ops, nil, nil, nil)
	app := newAITestApp(t, ac, "user@example.com")

	status, _ := postJSON(t, app, "/api/generate", validProblemInfo())
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, ops.generateCalls)
}

func TestHandleGenerateRejectsIncompleteProblem(t *testing.T) {
	ops := &fakeAIOps{}
	ac := NewAIController(ops, nil, nil, nil)
	app := newAITestApp(t, ac, "user@example.com")

	body := validProblemInfo()
	delete(body, "complexity")

	status, _ := postJSON(t, app, "/api/generate", body)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, 0, ops.generateCalls)
}

func TestHandleDebugOutOfCredits(t *testing.T) {
	ops := &fakeAIOps{solution: &ai.GeneratedSolution{Code: "pass"}}
	credits := &fakeCredits{account: &models.Subscription{Email: "user@example.com", Credits: 0}}
	ac := NewAIController(ops, credits, nil, nil)
	app := newAITestApp(t, ac, "user@example.com")

	status, _ := postJSON(t, app, "/api/debug", map[string]any{
		"imageDataList": []string{testImage(t)},
		"problemInfo":   validProblemInfo(),
		"language":      "python",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, 0, ops.debugCalls)
	assert.Equal(t, 0, credits.debitCalls)
}

func TestHandleDebugDebitsAfterSuccess(t *testing.T) {
	ops := &fakeAIOps{solution: &ai.GeneratedSolution{Code: "pass", Thoughts: []string{"fix"}}}
	credits := &fakeCredits{account: &models.Subscription{Email: "user@example.com", Credits: 5}}
	ac := NewAIController(ops, credits, nil, nil)
	app := newAITestApp(t, ac, "user@example.com")

	status, _ := postJSON(t, app, "/api/debug", map[string]any{
		"imageDataList": []string{testImage(t)},
		"problemInfo":   validProblemInfo(),
		"language":      "python",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, ops.debugCalls)
	assert.Equal(t, 1, credits.debitCalls)
	assert.Equal(t, int64(4), credits.account.Credits)
}

func TestHandleExtractUngatedByDefault(t *testing.T) {
	ops := &fakeAIOps{problem: &ai.ExtractedProblem{ProblemStatement: "Sum"}}
	credits := &fakeCredits{account: &models.Subscription{Email: "user@example.com", Credits: 0}}
	ac := NewAIController(ops, credits, nil, nil)
	app := newAITestApp(t, ac, "user@example.com")

	status, _ := postJSON(t, app, "/api/extract", map[string]any{
		"imageDataList": []string{testImage(t)},
		"language":      "python",
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 0, credits.debitCalls)
}
