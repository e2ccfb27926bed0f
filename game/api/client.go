// Package api is the REST client for the game engine's non-streaming
// endpoints: session creation, snapshots, reveals, and the player role.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"council-game-demo/client/pkg/logger"
)

// Client talks to the engine's JSON endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates an engine API client.
func NewClient(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// CreateFromText creates a game session from raw world text.
func (c *Client) CreateFromText(ctx context.Context, text string, numCharacters int) (*CreateResponse, error) {
	form := url.Values{}
	form.Set("text", text)
	if numCharacters > 0 {
		form.Set("num_characters", strconv.Itoa(numCharacters))
	}

	var out CreateResponse
	err := c.do(ctx, http.MethodPost, "/api/game/create",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFromFile creates a game session from an uploaded document.
func (c *Client) CreateFromFile(ctx context.Context, filename string, file []byte, numCharacters int) (*CreateResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := part.Write(file); err != nil {
		return nil, fmt.Errorf("error writing file data: %w", err)
	}
	if numCharacters > 0 {
		if err := writer.WriteField("num_characters", strconv.Itoa(numCharacters)); err != nil {
			return nil, fmt.Errorf("error writing form field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error closing multipart writer: %w", err)
	}

	var out CreateResponse
	err = c.do(ctx, http.MethodPost, "/api/game/create", body, writer.FormDataContentType(), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFromScenario creates a game session from a pre-built scenario.
func (c *Client) CreateFromScenario(ctx context.Context, scenarioID string, numCharacters int) (*CreateResponse, error) {
	path := "/api/game/scenario/" + url.PathEscape(scenarioID)
	if numCharacters > 0 {
		path += "?num_characters=" + strconv.Itoa(numCharacters)
	}

	var out CreateResponse
	if err := c.do(ctx, http.MethodPost, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListScenarios fetches the available pre-built scenarios.
func (c *Client) ListScenarios(ctx context.Context) ([]Scenario, error) {
	var out struct {
		Scenarios []Scenario `json:"scenarios"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/game/scenarios", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Scenarios, nil
}

// ListSkills fetches the available agent skills.
func (c *Client) ListSkills(ctx context.Context) ([]Skill, error) {
	var out struct {
		Skills []Skill `json:"skills"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/skills", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Skills, nil
}

// Start transitions the session from lobby to discussion.
func (c *Client) Start(ctx context.Context, sessionID string) (*StartResponse, error) {
	var out StartResponse
	path := "/api/game/" + url.PathEscape(sessionID) + "/start"
	if err := c.do(ctx, http.MethodPost, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FullState fetches the state snapshot. full=true returns the complete
// chat history for session recovery.
func (c *Client) FullState(ctx context.Context, sessionID string, full bool) (*StateSnapshot, error) {
	path := "/api/game/" + url.PathEscape(sessionID) + "/state"
	if full {
		path += "?full=true"
	}

	var out StateSnapshot
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reveal fetches an eliminated character's hidden record.
func (c *Client) Reveal(ctx context.Context, sessionID, characterID string) (*RevealRecord, error) {
	path := "/api/game/" + url.PathEscape(sessionID) + "/reveal/" + url.PathEscape(characterID)

	var out RevealRecord
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlayerRole fetches the player's hidden role.
func (c *Client) PlayerRole(ctx context.Context, sessionID string) (*PlayerRoleInfo, error) {
	path := "/api/game/" + url.PathEscape(sessionID) + "/player-role"

	var out PlayerRoleInfo
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making API request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var engineErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &engineErr) == nil && engineErr.Error != "" {
			return fmt.Errorf("engine request failed with status code %d: %s", resp.StatusCode, engineErr.Error)
		}
		return fmt.Errorf("engine request failed with status code %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("error unmarshaling response: %w", err)
		}
	}
	return nil
}
