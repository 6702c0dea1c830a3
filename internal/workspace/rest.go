package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RESTClient talks to the workspace gateway service, which fronts the actual
// platform API. The gateway owns authentication against the platform; this
// client only carries a bearer token for the gateway itself.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("workspace: %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *RESTClient) CreateChannel(ctx context.Context, orgID string, spec ChannelSpec) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/orgs/%s/channels", orgID), spec, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *RESTClient) DeleteChannel(ctx context.Context, orgID, channelID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/orgs/%s/channels/%s", orgID, channelID), nil, nil)
}

func (c *RESTClient) Channel(ctx context.Context, orgID, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orgs/%s/channels/%s", orgID, channelID), nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *RESTClient) Channels(ctx context.Context, orgID string) ([]Channel, error) {
	var chs []Channel
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orgs/%s/channels", orgID), nil, &chs); err != nil {
		return nil, err
	}
	return chs, nil
}

func (c *RESTClient) RenameChannel(ctx context.Context, orgID, channelID, name string) error {
	body := map[string]string{"name": name}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/orgs/%s/channels/%s", orgID, channelID), body, nil)
}

func (c *RESTClient) EditOverwrite(ctx context.Context, orgID, channelID string, ow Overwrite) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/orgs/%s/channels/%s/overwrites/%s", orgID, channelID, ow.TargetID), ow, nil)
}

func (c *RESTClient) CreateRole(ctx context.Context, orgID string, spec RoleSpec) (*Role, error) {
	var role Role
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/orgs/%s/roles", orgID), spec, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (c *RESTClient) DeleteRole(ctx context.Context, orgID, roleID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/orgs/%s/roles/%s", orgID, roleID), nil, nil)
}

func (c *RESTClient) Roles(ctx context.Context, orgID string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orgs/%s/roles", orgID), nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (c *RESTClient) Member(ctx context.Context, orgID, userID string) (*Member, error) {
	var m Member
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orgs/%s/members/%s", orgID, userID), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *RESTClient) Members(ctx context.Context, orgID string) ([]Member, error) {
	var ms []Member
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orgs/%s/members", orgID), nil, &ms); err != nil {
		return nil, err
	}
	return ms, nil
}

func (c *RESTClient) AddMemberRole(ctx context.Context, orgID, userID, roleID string) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/orgs/%s/members/%s/roles/%s", orgID, userID, roleID), nil, nil)
}

func (c *RESTClient) RemoveMemberRole(ctx context.Context, orgID, userID, roleID string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/orgs/%s/members/%s/roles/%s", orgID, userID, roleID), nil, nil)
}

func (c *RESTClient) SetNickname(ctx context.Context, orgID, userID, nickname string) error {
	body := map[string]string{"nickname": nickname}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/orgs/%s/members/%s", orgID, userID), body, nil)
}

func (c *RESTClient) BulkDeleteMessages(ctx context.Context, orgID, channelID string, limit int) error {
	body := map[string]int{"limit": limit}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/orgs/%s/channels/%s/messages:bulk-delete", orgID, channelID), body, nil)
}

var _ Client = (*RESTClient)(nil)
