package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TokenSource supplies OAuth2 bearer tokens for the admin REST API
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// UserRecord is one entry of the provider's user directory
type UserRecord struct {
	UID              string         `json:"uid"`
	Email            string         `json:"email"`
	DisplayName      string         `json:"displayName"`
	Disabled         bool           `json:"disabled"`
	CustomClaims     map[string]any `json:"customClaims"`
	TokensValidAfter time.Time      `json:"-"`
}

// ListUsersResult is a directory page
type ListUsersResult struct {
	Users         []UserRecord
	NextPageToken string
}

// UpdateUserParams carries the optional fields of an update. Nil fields are
// left untouched.
type UpdateUserParams struct {
	Email    *string
	Password *string
}

// apiUser is the wire shape of a directory account
type apiUser struct {
	LocalID          string `json:"localId"`
	Email            string `json:"email"`
	DisplayName      string `json:"displayName"`
	Disabled         bool   `json:"disabled"`
	CustomAttributes string `json:"customAttributes"`
	ValidSince       string `json:"validSince"`
}

func (u *apiUser) record() UserRecord {
	rec := UserRecord{
		UID:         u.LocalID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Disabled:    u.Disabled,
	}
	if u.CustomAttributes != "" {
		// Custom claims travel as a JSON string; a malformed value is
		// treated as no claims rather than failing the whole listing.
		_ = json.Unmarshal([]byte(u.CustomAttributes), &rec.CustomClaims)
	}
	if u.ValidSince != "" {
		if secs, err := strconv.ParseInt(u.ValidSince, 10, 64); err == nil {
			rec.TokensValidAfter = time.Unix(secs, 0)
		}
	}
	return rec
}

// GetUser looks up a single user by uid
func (c *Client) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	var out struct {
		Users []apiUser `json:"users"`
	}
	err := c.adminCall(ctx, http.MethodPost, "accounts:lookup", map[string]any{
		"localId": []string{uid},
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, ErrUserNotFound
	}
	rec := out.Users[0].record()
	return &rec, nil
}

// ListUsers returns one page of the user directory. maxResults is clamped
// to [1, 1000]; pass an empty pageToken for the first page.
func (c *Client) ListUsers(ctx context.Context, maxResults int, pageToken string) (*ListUsersResult, error) {
	if maxResults < 1 {
		maxResults = 100
	}
	if maxResults > 1000 {
		maxResults = 1000
	}

	query := url.Values{"maxResults": {strconv.Itoa(maxResults)}}
	if pageToken != "" {
		query.Set("nextPageToken", pageToken)
	}

	var out struct {
		Users         []apiUser `json:"users"`
		NextPageToken string    `json:"nextPageToken"`
	}
	if err := c.adminCall(ctx, http.MethodGet, "accounts:batchGet?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}

	result := &ListUsersResult{NextPageToken: out.NextPageToken}
	for i := range out.Users {
		result.Users = append(result.Users, out.Users[i].record())
	}
	return result, nil
}

// CreateUser creates a directory account with email/password credentials
func (c *Client) CreateUser(ctx context.Context, email, password string) (*UserRecord, error) {
	var out apiUser
	err := c.adminCall(ctx, http.MethodPost, "accounts", map[string]any{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return c.GetUser(ctx, out.LocalID)
}

// UpdateUser updates email and/or password of an account
func (c *Client) UpdateUser(ctx context.Context, uid string, params UpdateUserParams) (*UserRecord, error) {
	body := map[string]any{"localId": uid}
	if params.Email != nil {
		body["email"] = *params.Email
	}
	if params.Password != nil {
		body["password"] = *params.Password
	}

	if err := c.adminCall(ctx, http.MethodPost, "accounts:update", body, nil); err != nil {
		return nil, err
	}
	return c.GetUser(ctx, uid)
}

// DeleteUser removes an account from the directory
func (c *Client) DeleteUser(ctx context.Context, uid string) error {
	return c.adminCall(ctx, http.MethodPost, "accounts:delete", map[string]any{
		"localId": uid,
	}, nil)
}

// SetCustomClaims replaces the custom claims of an account. The claims
// appear in the user's ID tokens after their next refresh.
func (c *Client) SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error {
	encoded, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode custom claims: %w", err)
	}
	return c.adminCall(ctx, http.MethodPost, "accounts:update", map[string]any{
		"localId":          uid,
		"customAttributes": string(encoded),
	}, nil)
}

// RevokeRefreshTokens invalidates every refresh token of the user at the
// provider (global sign-out). ID tokens issued before this instant fail the
// checkRevoked verification path once they are next inspected.
func (c *Client) RevokeRefreshTokens(ctx context.Context, uid string) error {
	return c.adminCall(ctx, http.MethodPost, "accounts:update", map[string]any{
		"localId":    uid,
		"validSince": strconv.FormatInt(time.Now().Unix(), 10),
	}, nil)
}

// adminCall performs one authenticated request against the directory API
func (c *Client) adminCall(ctx context.Context, method, path string, body, out any) error {
	if c.tokenSource == nil {
		return fmt.Errorf("%w: admin credentials not configured", ErrMisconfigured)
	}

	bearer, err := c.tokenSource.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtain admin token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := fmt.Sprintf("%s/projects/%s/%s", c.adminURL, c.projectID, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read directory response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory request failed: status %d, body: %s", resp.StatusCode, string(payload))
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode directory response: %w", err)
		}
	}
	return nil
}
