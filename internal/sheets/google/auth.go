package google

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tablero/internal/core"
)

const (
	EnvServiceAccountEmail = "GOOGLE_SERVICE_ACCOUNT_EMAIL"
	EnvPrivateKey          = "GOOGLE_PRIVATE_KEY"
	EnvAPIKey              = "GOOGLE_API_KEY"
)

// AuthMode names the credential variant in use.
type AuthMode string

const (
	AuthServiceAccount AuthMode = "service_account"
	AuthAPIKey         AuthMode = "api_key"
)

// Auth is a resolved credential: either ServiceAccountAuth or APIKeyAuth.
type Auth interface {
	Mode() AuthMode
	clientOptions(ctx context.Context, pool *http.Client) ([]goption.ClientOption, error)
}

// ServiceAccountAuth signs requests with a service account key. It can
// read and append.
type ServiceAccountAuth struct {
	Email      string
	PrivateKey string
}

// APIKeyAuth sends a plain API key. Google only honours it for reads of
// publicly shared sheets.
type APIKeyAuth struct {
	Key string
}

var (
	_ Auth = ServiceAccountAuth{}
	_ Auth = APIKeyAuth{}
)

func (ServiceAccountAuth) Mode() AuthMode { return AuthServiceAccount }
func (APIKeyAuth) Mode() AuthMode         { return AuthAPIKey }

func (a ServiceAccountAuth) clientOptions(ctx context.Context, pool *http.Client) ([]goption.ClientOption, error) {
	cfg := &jwt.Config{
		Email:      a.Email,
		PrivateKey: []byte(a.PrivateKey),
		Scopes:     []string{gsheet.SpreadsheetsScope},
		TokenURL:   googleoauth.JWTTokenURL,
	}
	// The token source outlives the startup context.
	base := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, pool)
	return []goption.ClientOption{goption.WithHTTPClient(cfg.Client(base))}, nil
}

func (a APIKeyAuth) clientOptions(context.Context, *http.Client) ([]goption.ClientOption, error) {
	return []goption.ClientOption{goption.WithAPIKey(a.Key)}, nil
}

// ResolveAuth picks the credential variant once at startup. A complete
// service account wins over an API key; with neither, it returns a
// *core.ConfigurationError naming what is missing.
func ResolveAuth(email, privateKey, apiKey string) (Auth, error) {
	email = strings.TrimSpace(email)
	key := SanitizePrivateKey(privateKey)
	apiKey = strings.TrimSpace(apiKey)

	switch {
	case email != "" && key != "":
		return ServiceAccountAuth{Email: email, PrivateKey: key}, nil
	case apiKey != "":
		return APIKeyAuth{Key: apiKey}, nil
	}

	var missing []string
	if email == "" {
		missing = append(missing, EnvServiceAccountEmail)
	}
	if key == "" {
		missing = append(missing, EnvPrivateKey)
	}
	missing = append(missing, EnvAPIKey)
	return nil, &core.ConfigurationError{Missing: missing}
}

// SanitizePrivateKey repairs a PEM key copied into an environment variable.
// A value wrapped in double quotes is first decoded as a JSON string; then
// wrapping quotes are stripped and literal \n sequences become newlines.
func SanitizePrivateKey(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var decoded string
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			s = decoded
		}
	}
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, `\n`, "\n")
}
