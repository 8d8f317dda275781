// Package generation holds the boundary contracts for the external content
// generator and the vector-similarity duplicate checker, plus thin HTTP
// clients for both. The core treats everything behind these interfaces as
// opaque.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Spec describes a content-generation request.
type Spec struct {
	Topic       string `json:"topic"`
	Count       int    `json:"count"`
	Subtype     string `json:"subtype,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

// GeneratedItem is one question/answer unit returned by the generator.
type GeneratedItem struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Subtype     string   `json:"subtype,omitempty"`
	Distractors []string `json:"distractors,omitempty"`
}

// Result is the generator's response for one Spec.
type Result struct {
	Items      []GeneratedItem `json:"items"`
	ModelID    string          `json:"model_id"`
	RetryCount int             `json:"retry_count"`
}

// Generator produces question/answer content. Implementations are external
// collaborators (typically a language-model service).
type Generator interface {
	Generate(ctx context.Context, spec Spec) (Result, error)
}

// Match is one similarity hit for a candidate text.
type Match struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// SimilarityChecker answers "is this text a near-duplicate of an existing
// item". Consumed before items are created; the core performs no similarity
// search itself.
type SimilarityChecker interface {
	FindSimilar(ctx context.Context, text, ownerID string, threshold float64, limit int) ([]Match, error)
}

// HTTPGenerator calls a generation service over HTTP. The service receives the
// Spec as JSON and replies with a Result.
type HTTPGenerator struct {
	URL    string
	Client *http.Client
}

// NewHTTPGenerator creates an HTTPGenerator for the given endpoint.
func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{
		URL:    url,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Generate implements Generator.
func (g *HTTPGenerator) Generate(ctx context.Context, spec Spec) (Result, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return Result{}, fmt.Errorf("generation: encode spec: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("generation: call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("generation: generator returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("generation: decode result: %w", err)
	}
	return result, nil
}

// HTTPSimilarityChecker calls a similarity service over HTTP.
type HTTPSimilarityChecker struct {
	URL    string
	Client *http.Client
}

// NewHTTPSimilarityChecker creates an HTTPSimilarityChecker for the given endpoint.
func NewHTTPSimilarityChecker(url string) *HTTPSimilarityChecker {
	return &HTTPSimilarityChecker{
		URL:    url,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

type similarityRequest struct {
	Text      string  `json:"text"`
	OwnerID   string  `json:"owner_id"`
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

// FindSimilar implements SimilarityChecker.
func (c *HTTPSimilarityChecker) FindSimilar(ctx context.Context, text, ownerID string, threshold float64, limit int) ([]Match, error) {
	body, err := json.Marshal(similarityRequest{Text: text, OwnerID: ownerID, Threshold: threshold, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("generation: encode similarity request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation: call similarity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation: similarity service returned status %d", resp.StatusCode)
	}

	var matches []Match
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return nil, fmt.Errorf("generation: decode matches: %w", err)
	}
	return matches, nil
}
