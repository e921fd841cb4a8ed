package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gigmarket/gigmarket/internal/models"
)

// ProfilesTable is the table holding one profile row per user.
const ProfilesTable = "profiles"

// noRowsCode is PostgREST's answer when a single-object request matched nothing.
const noRowsCode = "PGRST116"

// ProfileByID fetches exactly one profile row. models.ErrNotFound is
// returned while the row does not exist, which is normal right after sign-up
// until the backend's row-creation trigger has run.
func (c *Client) ProfileByID(ctx context.Context, userID string) (*models.Profile, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("id", "eq."+userID)

	req, err := c.newRequest(ctx, http.MethodGet, "/rest/v1/"+ProfilesTable+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	c.setHeaders(req, c.accessToken())

	resp, err := c.do(req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == noRowsCode || apiErr.Status == http.StatusNotAcceptable) {
			return nil, fmt.Errorf("profile %s: %w", userID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	var p models.Profile
	if err := resp.JSON(&p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("profile %s: %w", userID, models.ErrNotFound)
	}
	return &p, nil
}

// UpdateProfile patches the profile row of userID and returns the stored row.
func (c *Client) UpdateProfile(ctx context.Context, userID string, patch map[string]any) (*models.Profile, error) {
	token := c.accessToken()
	if token == "" {
		return nil, models.ErrNoSession
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	params := url.Values{}
	params.Set("id", "eq."+userID)

	req, err := c.newRequest(ctx, http.MethodPatch, "/rest/v1/"+ProfilesTable+"?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	var rows []models.Profile
	if err := resp.JSON(&rows); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile %s: %w", userID, models.ErrNotFound)
	}
	return &rows[0], nil
}
