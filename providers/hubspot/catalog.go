package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/funtoco/go-connectors/core"
	"github.com/funtoco/go-connectors/wizard"
)

const defaultAPIBaseURL = "https://api.hubapi.com"

type AccessTokenSource interface {
	AccessToken(ctx context.Context, connectorID string) (string, error)
}

// Catalog exposes HubSpot CRM object schemas as remote apps. Each
// schema's properties become the mappable field list.
type Catalog struct {
	adapter core.TransportAdapter
	tokens  AccessTokenSource
	baseURL string
}

func NewCatalog(adapter core.TransportAdapter, tokens AccessTokenSource) (*Catalog, error) {
	if adapter == nil {
		return nil, fmt.Errorf("hubspot: transport adapter is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("hubspot: access token source is required")
	}
	return &Catalog{
		adapter: adapter,
		tokens:  tokens,
		baseURL: defaultAPIBaseURL,
	}, nil
}

func (c *Catalog) ListApps(ctx context.Context, connectorID string) ([]wizard.RemoteApp, error) {
	if c == nil {
		return nil, fmt.Errorf("hubspot: catalog is not configured")
	}
	body, err := c.get(ctx, connectorID, "/crm/v3/schemas")
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Results []struct {
			ObjectTypeID string `json:"objectTypeId"`
			Name         string `json:"name"`
			Labels       struct {
				Plural string `json:"plural"`
			} `json:"labels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("hubspot: decode schemas response: %w", err)
	}

	apps := make([]wizard.RemoteApp, 0, len(decoded.Results))
	for _, schema := range decoded.Results {
		id := strings.TrimSpace(schema.ObjectTypeID)
		if id == "" {
			id = strings.TrimSpace(schema.Name)
		}
		if id == "" {
			continue
		}
		name := strings.TrimSpace(schema.Labels.Plural)
		if name == "" {
			name = strings.TrimSpace(schema.Name)
		}
		apps = append(apps, wizard.RemoteApp{ID: id, Name: name})
	}
	return apps, nil
}

func (c *Catalog) ListAppFields(ctx context.Context, connectorID string, appID string) ([]wizard.RemoteAppField, error) {
	if c == nil {
		return nil, fmt.Errorf("hubspot: catalog is not configured")
	}
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, fmt.Errorf("hubspot: object type is required")
	}
	body, err := c.get(ctx, connectorID, "/crm/v3/properties/"+url.PathEscape(appID))
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Results []struct {
			Name  string `json:"name"`
			Label string `json:"label"`
			Type  string `json:"type"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("hubspot: decode properties response: %w", err)
	}

	fields := make([]wizard.RemoteAppField, 0, len(decoded.Results))
	for _, property := range decoded.Results {
		name := strings.TrimSpace(property.Name)
		if name == "" {
			continue
		}
		fields = append(fields, wizard.RemoteAppField{
			Code:  name,
			Label: strings.TrimSpace(property.Label),
			Type:  strings.TrimSpace(property.Type),
		})
	}
	return fields, nil
}

func (c *Catalog) get(ctx context.Context, connectorID string, path string) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx, connectorID)
	if err != nil {
		return nil, err
	}
	res, err := c.adapter.Do(ctx, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     c.baseURL + path,
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf(
			"hubspot: metadata request %s failed (%d): %s",
			path,
			res.StatusCode,
			strings.TrimSpace(string(res.Body)),
		)
	}
	return res.Body, nil
}

var _ wizard.RemoteAppCatalog = (*Catalog)(nil)
