package kintone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

// AccessTokenSource yields a bearer token for a connector. The core
// auth service satisfies it.
type AccessTokenSource interface {
	AccessToken(ctx context.Context, connectorID string) (string, error)
}

// Catalog lists kintone apps and their form fields through the REST
// transport, satisfying the wizard's remote app collaborator.
type Catalog struct {
	adapter core.TransportAdapter
	tokens  AccessTokenSource
	baseURL string
}

func NewCatalog(subdomain string, adapter core.TransportAdapter, tokens AccessTokenSource) (*Catalog, error) {
	subdomain = strings.TrimSpace(subdomain)
	if subdomain == "" {
		return nil, fmt.Errorf("kintone: subdomain is required")
	}
	if strings.ContainsAny(subdomain, "./? ") {
		return nil, fmt.Errorf("kintone: subdomain %q must be a bare host label", subdomain)
	}
	if adapter == nil {
		return nil, fmt.Errorf("kintone: transport adapter is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("kintone: access token source is required")
	}
	return &Catalog{
		adapter: adapter,
		tokens:  tokens,
		baseURL: fmt.Sprintf("https://%s.cybozu.com", subdomain),
	}, nil
}

func (c *Catalog) ListApps(ctx context.Context, connectorID string) ([]wizard.RemoteApp, error) {
	if c == nil {
		return nil, fmt.Errorf("kintone: catalog is not configured")
	}
	body, err := c.get(ctx, connectorID, "/k/v1/apps.json", map[string]string{"limit": "100"})
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Apps []struct {
			AppID string `json:"appId"`
			Name  string `json:"name"`
		} `json:"apps"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("kintone: decode apps response: %w", err)
	}

	apps := make([]wizard.RemoteApp, 0, len(decoded.Apps))
	for _, app := range decoded.Apps {
		id := strings.TrimSpace(app.AppID)
		if id == "" {
			continue
		}
		apps = append(apps, wizard.RemoteApp{ID: id, Name: strings.TrimSpace(app.Name)})
	}
	return apps, nil
}

func (c *Catalog) ListAppFields(ctx context.Context, connectorID string, appID string) ([]wizard.RemoteAppField, error) {
	if c == nil {
		return nil, fmt.Errorf("kintone: catalog is not configured")
	}
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, fmt.Errorf("kintone: app id is required")
	}
	body, err := c.get(ctx, connectorID, "/k/v1/app/form/fields.json", map[string]string{"app": appID})
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Properties map[string]struct {
			Code  string `json:"code"`
			Label string `json:"label"`
			Type  string `json:"type"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("kintone: decode form fields response: %w", err)
	}

	fields := make([]wizard.RemoteAppField, 0, len(decoded.Properties))
	for code, property := range decoded.Properties {
		if strings.TrimSpace(property.Code) == "" {
			property.Code = code
		}
		fields = append(fields, wizard.RemoteAppField{
			Code:  strings.TrimSpace(property.Code),
			Label: strings.TrimSpace(property.Label),
			Type:  strings.TrimSpace(property.Type),
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Code < fields[j].Code })
	return fields, nil
}

func (c *Catalog) get(ctx context.Context, connectorID string, path string, query map[string]string) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx, connectorID)
	if err != nil {
		return nil, err
	}
	res, err := c.adapter.Do(ctx, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     c.baseURL + path,
		Headers: map[string]string{"Authorization": "Bearer " + token},
		Query:   query,
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf(
			"kintone: metadata request %s failed (%d): %s",
			path,
			res.StatusCode,
			strings.TrimSpace(string(res.Body)),
		)
	}
	return res.Body, nil
}

var _ wizard.RemoteAppCatalog = (*Catalog)(nil)
