// Package google wraps the Docs, Sheets and Drive APIs used by task handlers.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/skipshean/linear-agent-tasks/internal/remedy"
)

// Scopes requested for every service; Drive is needed to file created
// documents into the team folder.
var (
	DocsScopes   = []string{"https://www.googleapis.com/auth/documents", "https://www.googleapis.com/auth/drive"}
	SheetsScopes = []string{"https://www.googleapis.com/auth/spreadsheets", "https://www.googleapis.com/auth/drive"}
)

var (
	// ErrCredentialsNotFound means the credentials file is missing or unreadable.
	ErrCredentialsNotFound = errors.New("google credentials not found")
	// ErrTokenNotFound means an OAuth client file has no authorized token next to it.
	ErrTokenNotFound = errors.New("google OAuth token not found")
	// ErrUnsupportedCredentials means the credentials file type is not recognised.
	ErrUnsupportedCredentials = errors.New("unsupported google credentials file")
)

// Config is the per-team Google setup.
type Config struct {
	CredentialsPath string
	DriveFolderID   string
	// QuotaProject bills API usage to a specific Cloud project.
	QuotaProject string
}

// CredentialKind is the detected type of a credentials file.
type CredentialKind string

const (
	KindServiceAccount CredentialKind = "service_account"
	KindAuthorizedUser CredentialKind = "authorized_user"
	KindOAuthClient    CredentialKind = "oauth_client"
)

// DetectKind inspects a credentials JSON document.
func DetectKind(data []byte) (CredentialKind, error) {
	var probe struct {
		Type      string          `json:"type"`
		Installed json.RawMessage `json:"installed"`
		Web       json.RawMessage `json:"web"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedCredentials, err)
	}
	switch {
	case probe.Type == string(KindServiceAccount):
		return KindServiceAccount, nil
	case probe.Type == string(KindAuthorizedUser):
		return KindAuthorizedUser, nil
	case probe.Installed != nil || probe.Web != nil:
		return KindOAuthClient, nil
	}
	return "", ErrUnsupportedCredentials
}

// TokenPath is where the authorized token for an OAuth client file lives.
func TokenPath(credentialsPath string) string {
	return strings.TrimSuffix(credentialsPath, ".json") + "_token.json"
}

// ClientOptions turns a team config into API client options.
func ClientOptions(ctx context.Context, cfg Config, scopes ...string) ([]option.ClientOption, error) {
	data, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, remedy.Wrap(fmt.Errorf("%w: %s: %w", ErrCredentialsNotFound, cfg.CredentialsPath, err),
			"Check google.credentials_path in the team configuration",
			"Download a service account key or OAuth client file from the Google Cloud console")
	}

	kind, err := DetectKind(data)
	if err != nil {
		return nil, remedy.Wrap(fmt.Errorf("%s: %w", cfg.CredentialsPath, err),
			"Use a service account key, an authorized user file, or an OAuth client secret file")
	}

	var opts []option.ClientOption
	switch kind {
	case KindServiceAccount, KindAuthorizedUser:
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(scopes...))
	case KindOAuthClient:
		ts, err := oauthTokenSource(ctx, data, cfg.CredentialsPath, scopes)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithTokenSource(ts))
	}

	if cfg.QuotaProject != "" {
		opts = append(opts, option.WithQuotaProject(cfg.QuotaProject))
	}
	return opts, nil
}

func oauthTokenSource(ctx context.Context, clientJSON []byte, credentialsPath string, scopes []string) (oauth2.TokenSource, error) {
	conf, err := googleoauth.ConfigFromJSON(clientJSON, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedCredentials, err)
	}

	tokenPath := TokenPath(credentialsPath)
	raw, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, remedy.Wrap(fmt.Errorf("%w: %s", ErrTokenNotFound, tokenPath),
			"Authorize once in a browser and save the token JSON to "+tokenPath,
			"Or switch google.credentials_path to a service account key")
	}

	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", tokenPath, err)
	}
	return conf.TokenSource(ctx, &tok), nil
}
