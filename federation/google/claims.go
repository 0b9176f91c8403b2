package google

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Claims is what an Introspector learned about a provider token. The
// Exchanger decides which of these can be trusted.
type Claims struct {
	Issuer        string
	Subject       string
	Audience      []string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	ExpiresAt     time.Time
}

// flexBool accepts true, "true" and friends. tokeninfo encodes booleans as strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*b = false
		return nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}

// flexInt accepts 123 and "123". tokeninfo encodes numbers as strings.
type flexInt int64

func (i *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*i = 0
		return nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return err
	}
	*i = flexInt(v)
	return nil
}

// tokenInfoResponse mirrors the tokeninfo payload for an ID token
type tokenInfoResponse struct {
	Issuer        string   `json:"iss"`
	Subject       string   `json:"sub"`
	Audience      string   `json:"aud"`
	AuthorizedBy  string   `json:"azp"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
	Expiry        flexInt  `json:"exp"`
}

func (r tokenInfoResponse) claims() Claims {
	c := Claims{
		Issuer:        r.Issuer,
		Subject:       r.Subject,
		Email:         r.Email,
		EmailVerified: bool(r.EmailVerified),
		Name:          r.Name,
		Picture:       r.Picture,
	}
	if r.Audience != "" {
		c.Audience = []string{r.Audience}
	}
	if r.Expiry > 0 {
		c.ExpiresAt = time.Unix(int64(r.Expiry), 0).UTC()
	}
	return c
}

type googleErrorResponse struct {
	Error string `json:"error"`
	Desc  string `json:"error_description"`
}

func parseGoogleError(body []byte) (string, string) {
	var plain googleErrorResponse
	if err := json.Unmarshal(body, &plain); err == nil && (plain.Error != "" || plain.Desc != "") {
		return plain.Error, plain.Desc
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "google request failed"
	}
	return "", msg
}
