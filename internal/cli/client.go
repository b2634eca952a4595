package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"akiverse/internal/api"
	"akiverse/internal/arcade"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session Session
}

func NewClient(baseURL string, session Session) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
		Session: session,
	}
}

// APIError is a non-2xx response from the akiverse API.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api status %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsAPIError reports whether err came back from the server rather than the
// transport.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func (c *Client) Install(ctx context.Context, arcadeMachineID, gameCenterID string, autoRenewLease bool) (arcade.Transition, error) {
	var out arcade.Transition
	err := c.jsonRequest(ctx, http.MethodPost, machinePath(arcadeMachineID, "install"), map[string]any{
		"game_center_id":   gameCenterID,
		"auto_renew_lease": autoRenewLease,
	}, &out)
	return out, err
}

func (c *Client) Uninstall(ctx context.Context, arcadeMachineID string) (arcade.Transition, error) {
	var out arcade.Transition
	err := c.jsonRequest(ctx, http.MethodPost, machinePath(arcadeMachineID, "uninstall"), map[string]any{}, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, arcadeMachineID string, autoRenewLease bool) (arcade.Transition, error) {
	var out arcade.Transition
	err := c.jsonRequest(ctx, http.MethodPatch, machinePath(arcadeMachineID, ""), map[string]any{
		"auto_renew_lease": autoRenewLease,
	}, &out)
	return out, err
}

func (c *Client) Dismantle(ctx context.Context, arcadeMachineID string, currency arcade.Currency) (arcade.DismantleResult, error) {
	var out arcade.DismantleResult
	err := c.jsonRequest(ctx, http.MethodPost, machinePath(arcadeMachineID, "dismantle"), map[string]any{
		"currency_type": string(currency),
	}, &out)
	return out, err
}

func (c *Client) Withdraw(ctx context.Context, ids ...string) (arcade.Batch, error) {
	var out arcade.Batch
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/arcade-machines/withdraw", map[string]any{
		"ids": ids,
	}, &out)
	return out, err
}

func (c *Client) Deposit(ctx context.Context, hash string, ids ...string) (arcade.Batch, error) {
	var out arcade.Batch
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/arcade-machines/deposit", map[string]any{
		"hash": hash,
		"ids":  ids,
	}, &out)
	return out, err
}

func (c *Client) Playable(ctx context.Context, game string, requestCount, maxPlayingCount int) ([]arcade.ArcadeMachine, error) {
	q := url.Values{}
	q.Set("game", game)
	q.Set("request_count", strconv.Itoa(requestCount))
	q.Set("max_playing_count", strconv.Itoa(maxPlayingCount))
	var out struct {
		ArcadeMachines []arcade.ArcadeMachine `json:"arcade_machines"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/arcade-machines/playable?"+q.Encode(), nil, &out)
	return out.ArcadeMachines, err
}

func machinePath(id, action string) string {
	path := "/v1/arcade-machines/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Session.UserID != "" {
		req.Header.Set(api.HeaderUserID, c.Session.UserID)
	}
	if c.Session.WalletAddress != "" {
		req.Header.Set(api.HeaderWalletAddress, c.Session.WalletAddress)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var payload struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
