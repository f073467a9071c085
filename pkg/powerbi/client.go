// Package powerbi is a thin client for the Power BI REST API, used to list
// the row-level-security roles of a dataset and their members. Token
// acquisition and report embedding live outside the role administration
// core; this package is its only reach into the reporting platform.
package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultBaseURL = "https://api.powerbi.com/v1.0/myorg"
	scope          = "https://analysis.windows.net/powerbi/api/.default"
)

// Config holds the Azure AD application credentials used for
// client-credential token acquisition
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Client calls the Power BI REST API with automatically refreshed
// client-credential tokens
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a Power BI client for the given Azure AD application
func NewClient(cfg Config) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{scope},
	}
	return &Client{
		http:    cc.Client(context.Background()),
		baseURL: defaultBaseURL,
	}
}

// DatasetRoles returns the RLS roles of a dataset mapped to their member
// identifiers. The dataset roles API is tried first; datasets that do not
// expose it fall back to the TMSCHEMA DMVs via executeQueries.
func (c *Client) DatasetRoles(ctx context.Context, groupID, datasetID string) (map[string][]string, error) {
	roles, err := c.datasetRolesDirect(ctx, groupID, datasetID)
	if err == nil && len(roles) > 0 {
		return roles, nil
	}

	return c.datasetRolesViaDMV(ctx, groupID, datasetID)
}

type datasetRole struct {
	Name    string `json:"name"`
	Members []struct {
		EmailAddress string `json:"emailAddress"`
		Identifier   string `json:"identifier"`
	} `json:"members"`
}

func (c *Client) datasetRolesDirect(ctx context.Context, groupID, datasetID string) (map[string][]string, error) {
	url := fmt.Sprintf("%s/groups/%s/datasets/%s/roles", c.baseURL, groupID, datasetID)

	var payload struct {
		Value []datasetRole `json:"value"`
	}
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return nil, err
	}

	roles := make(map[string][]string, len(payload.Value))
	for _, role := range payload.Value {
		members := make([]string, 0, len(role.Members))
		for _, m := range role.Members {
			if m.EmailAddress != "" {
				members = append(members, m.EmailAddress)
			} else if m.Identifier != "" {
				members = append(members, m.Identifier)
			}
		}
		roles[role.Name] = members
	}
	return roles, nil
}

type dmvResult struct {
	Results []struct {
		Tables []struct {
			Rows []map[string]interface{} `json:"rows"`
		} `json:"tables"`
	} `json:"results"`
}

func (c *Client) datasetRolesViaDMV(ctx context.Context, groupID, datasetID string) (map[string][]string, error) {
	url := fmt.Sprintf("%s/groups/%s/datasets/%s/executeQueries", c.baseURL, groupID, datasetID)

	body := map[string]interface{}{
		"queries": []map[string]string{
			{"query": "EVALUATE TMSCHEMA_ROLES"},
			{"query": "EVALUATE TMSCHEMA_ROLE_MEMBERSHIP"},
		},
	}

	var result dmvResult
	if err := c.postJSON(ctx, url, body, &result); err != nil {
		return nil, fmt.Errorf("failed to execute role DMVs: %w", err)
	}
	if len(result.Results) < 2 || len(result.Results[0].Tables) == 0 || len(result.Results[1].Tables) == 0 {
		return nil, fmt.Errorf("unexpected executeQueries result shape")
	}

	roleRows := result.Results[0].Tables[0].Rows
	memberRows := result.Results[1].Tables[0].Rows

	roles := map[string][]string{}
	for _, roleRow := range roleRows {
		roleID := columnValue(roleRow, "ID")
		name, ok := columnValue(roleRow, "Name").(string)
		if !ok {
			continue
		}
		members := []string{}
		for _, memberRow := range memberRows {
			if columnValue(memberRow, "RoleID") != roleID {
				continue
			}
			if member, ok := columnValue(memberRow, "MemberName").(string); ok {
				members = append(members, member)
			}
		}
		roles[name] = members
	}
	return roles, nil
}

// columnValue looks up a DMV column whose key may or may not carry the
// table-prefixed bracket form, e.g. "TMSCHEMA_ROLES[Name]"
func columnValue(row map[string]interface{}, column string) interface{} {
	suffix := "[" + column + "]"
	for key, value := range row {
		if key == column || strings.HasSuffix(key, suffix) {
			return value
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("power bi api returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
