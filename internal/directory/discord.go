package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"holder-roles/internal/domain"
	"holder-roles/internal/observability"
)

// Default configuration values.
const (
	DefaultAPIBase = "https://discord.com/api/v10"
	DefaultTimeout = 30 * time.Second

	memberSearchLimit = 1000
)

// Discord implements RoleDirectory over the Discord REST API with a bot token.
type Discord struct {
	base   string
	token  string
	client *http.Client
}

var _ RoleDirectory = (*Discord)(nil)

// Option configures Discord.
type Option func(*Discord)

// WithAPIBase sets the REST API base URL.
func WithAPIBase(base string) Option {
	return func(d *Discord) {
		if base != "" {
			d.base = base
		}
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Discord) {
		d.client = client
	}
}

// NewDiscord creates a Discord directory client authenticated with a bot token.
func NewDiscord(token string, opts ...Option) *Discord {
	d := &Discord{
		base:   DefaultAPIBase,
		token:  token,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type discordMember struct {
	User struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		Discriminator string `json:"discriminator"`
	} `json:"user"`
}

type discordRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResolveMember searches the guild for an exact username and discriminator match.
func (d *Discord) ResolveMember(ctx context.Context, serverID, identity string) (*Member, error) {
	username, discriminator := SplitIdentity(identity)

	q := url.Values{}
	q.Set("query", username)
	q.Set("limit", fmt.Sprint(memberSearchLimit))
	path := fmt.Sprintf("/guilds/%s/members/search?%s", url.PathEscape(serverID), q.Encode())

	var members []discordMember
	err := d.do(ctx, http.MethodGet, path, &members)
	observability.RecordDirectoryCall("resolve_member", err)
	if err != nil {
		return nil, fmt.Errorf("search member %s: %w", identity, err)
	}

	for _, m := range members {
		disc := m.User.Discriminator
		if disc == "" {
			disc = "0"
		}
		if m.User.Username == username && disc == discriminator {
			return &Member{ID: m.User.ID, Username: m.User.Username, Discriminator: disc}, nil
		}
	}
	return nil, fmt.Errorf("member %s on %s: %w", identity, serverID, ErrNotFound)
}

// ResolveRole looks roleID up among the guild roles.
func (d *Discord) ResolveRole(ctx context.Context, serverID, roleID string) (*Role, error) {
	var roles []discordRole
	err := d.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/roles", url.PathEscape(serverID)), &roles)
	observability.RecordDirectoryCall("resolve_role", err)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}

	for _, r := range roles {
		if r.ID == roleID {
			return &Role{ID: r.ID, Name: r.Name}, nil
		}
	}
	return nil, fmt.Errorf("role %s on %s: %w", roleID, serverID, ErrNotFound)
}

// AddRole grants role to member.
func (d *Discord) AddRole(ctx context.Context, serverID string, member *Member, role *Role) error {
	err := d.do(ctx, http.MethodPut, memberRolePath(serverID, member, role), nil)
	observability.RecordDirectoryCall("add_role", err)
	if err != nil {
		return fmt.Errorf("add role %s to %s: %w", role.ID, member.ID, err)
	}
	return nil
}

// RemoveRole revokes role from member.
func (d *Discord) RemoveRole(ctx context.Context, serverID string, member *Member, role *Role) error {
	err := d.do(ctx, http.MethodDelete, memberRolePath(serverID, member, role), nil)
	observability.RecordDirectoryCall("remove_role", err)
	if err != nil {
		return fmt.Errorf("remove role %s from %s: %w", role.ID, member.ID, err)
	}
	return nil
}

func memberRolePath(serverID string, member *Member, role *Role) string {
	return fmt.Sprintf("/guilds/%s/members/%s/roles/%s",
		url.PathEscape(serverID), url.PathEscape(member.ID), url.PathEscape(role.ID))
}

// do performs one request. Calls are never retried.
func (d *Discord) do(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, d.base+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, string(body))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// DiscordFactory builds Discord clients from project configs, falling back to
// a process-wide bot token. Clients are cached per token.
type DiscordFactory struct {
	token string
	opts  []Option

	mu      sync.Mutex
	clients map[string]*Discord
}

var _ Factory = (*DiscordFactory)(nil)

// NewDiscordFactory creates a factory with a fallback bot token.
func NewDiscordFactory(token string, opts ...Option) *DiscordFactory {
	return &DiscordFactory{
		token:   token,
		opts:    opts,
		clients: make(map[string]*Discord),
	}
}

// For returns the client of the project's bot.
func (f *DiscordFactory) For(cfg *domain.ProjectConfig) (RoleDirectory, error) {
	if cfg.DiscordServerID == "" {
		return nil, fmt.Errorf("%w: missing server id", ErrNotConfigured)
	}
	token := cfg.DiscordBotToken
	if token == "" {
		token = f.token
	}
	if token == "" {
		return nil, fmt.Errorf("%w: missing bot token", ErrNotConfigured)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.clients[token]; ok {
		return d, nil
	}
	d := NewDiscord(token, f.opts...)
	f.clients[token] = d
	return d, nil
}
