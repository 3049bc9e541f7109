package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/woozymasta/ndvimap/internal/apperr"
)

// HTTPExchanger performs the client-credentials grant against a token endpoint.
type HTTPExchanger struct {
	TokenURL string
	Client   *http.Client
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
}

// Exchange posts the form-encoded grant and decodes {access_token, expires_in}.
// Every failure is reported as *apperr.AuthError.
func (e *HTTPExchanger) Exchange(ctx context.Context, creds Credentials) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &apperr.AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, &apperr.AuthError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &apperr.AuthError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, &apperr.AuthError{Status: resp.StatusCode, Body: apperr.TruncateBody(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, &apperr.AuthError{Status: resp.StatusCode, Err: err}
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return "", 0, &apperr.AuthError{Status: resp.StatusCode, Body: "response missing access_token or expires_in"}
	}

	return tr.AccessToken, time.Duration(tr.ExpiresIn * float64(time.Second)), nil
}
