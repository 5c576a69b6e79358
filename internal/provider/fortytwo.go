package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	fortyTwoAuthorizeURL = "https://api.intra.42.fr/oauth/authorize"
	fortyTwoTokenURL     = "https://api.intra.42.fr/oauth/token"
	fortyTwoProfileURL   = "https://api.intra.42.fr/v2/me"
)

// FortyTwoProfile is the subset of the intranet profile we provision
// accounts from.
type FortyTwoProfile struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
	Image struct {
		Link string `json:"link"`
	} `json:"image"`
}

// FortyTwoClient speaks the 42 intranet OAuth2 flow.
type FortyTwoClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	profileURL   string
	client       *http.Client
}

// NewFortyTwoClient creates a 42 OAuth client.
func NewFortyTwoClient(clientID, clientSecret, redirectURI string) *FortyTwoClient {
	return &FortyTwoClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		tokenURL:     fortyTwoTokenURL,
		profileURL:   fortyTwoProfileURL,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthorizeURL builds the redirect target that starts the flow. state
// is echoed back on the callback for CSRF protection.
func (c *FortyTwoClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	return fortyTwoAuthorizeURL + "?" + q.Encode()
}

// Exchange trades an authorization code for the intranet profile.
func (c *FortyTwoClient) Exchange(ctx context.Context, code string) (*FortyTwoProfile, error) {
	accessToken, err := c.fetchToken(ctx, code)
	if err != nil {
		return nil, err
	}
	return c.fetchProfile(ctx, accessToken)
}

func (c *FortyTwoClient) fetchToken(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}
	return body.AccessToken, nil
}

func (c *FortyTwoClient) fetchProfile(ctx context.Context, accessToken string) (*FortyTwoProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile endpoint returned %d", resp.StatusCode)
	}

	var profile FortyTwoProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if profile.Login == "" {
		return nil, fmt.Errorf("profile has no login")
	}
	return &profile, nil
}
