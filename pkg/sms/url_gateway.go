package sms

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// URLGateway sends messages through a provider's GET "message via URL" API,
// authenticated with a single API key
type URLGateway struct {
	baseURL string
	apiKey  string
	mask    string // sender id shown on the handset
	client  *http.Client
}

// NewURLGateway creates a new URL gateway instance
func NewURLGateway(baseURL, apiKey, mask string) *URLGateway {
	return &URLGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		mask:    mask,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendMessage sends a message via the provider's URL API. The provider
// answers "1" or a numeric transaction id on success and an error code
// otherwise.
func (g *URLGateway) SendMessage(phone, message string) (int64, error) {
	to := NormalizePhone(phone)
	if to == "" {
		return 0, fmt.Errorf("invalid phone number: %q", phone)
	}

	params := url.Values{}
	params.Add("esmsqk", g.apiKey)
	params.Add("list", to)
	params.Add("source_address", g.mask)
	params.Add("message", message)

	fullURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())

	resp, err := g.client.Get(fullURL)
	if err != nil {
		// url.Error embeds the request URL; keep the API key out of logs
		return 0, fmt.Errorf("failed to send SMS: %s", strings.ReplaceAll(err.Error(), g.apiKey, "***"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read SMS response: %w", err)
	}
	responseStr := strings.TrimSpace(string(body))

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, responseStr)
	}

	if responseStr == "1" {
		return time.Now().Unix(), nil
	}
	if id, err := strconv.ParseInt(responseStr, 10, 64); err == nil && id > 1 {
		return id, nil
	}

	return 0, fmt.Errorf("SMS sending failed with error code: %s", responseStr)
}

// GetName returns the name of this SMS gateway
func (g *URLGateway) GetName() string {
	return "URL Gateway"
}

// NormalizePhone strips separators and a leading '+', returning digits only.
// Returns "" when fewer than 10 or more than 15 digits remain.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 || len(digits) > 15 {
		return ""
	}
	return digits
}
