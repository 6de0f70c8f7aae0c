// Package helpdesk reads tickets and users from the helpdesk's REST API.
package helpdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

const systemName = "helpdesk"

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// Client talks to the helpdesk with basic authentication.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient builds a client from the source configuration.
func NewClient(cfg config.SourceConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL(), "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.HTTPTimeout()},
		logger:   logger,
	}
}

// WithHTTPClient swaps the transport, e.g. for tests.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.http = httpClient
	return c
}

// BaseURL returns the helpdesk origin the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTickets returns one page of a view.
func (c *Client) ListTickets(ctx context.Context, viewID int64, page int) ([]domain.SourceTicket, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	var raw []ticketJSON
	if err := c.getJSON(ctx, "/rules/"+strconv.FormatInt(viewID, 10)+".json", q, &raw); err != nil {
		return nil, err
	}
	tickets := make([]domain.SourceTicket, 0, len(raw))
	for _, t := range raw {
		tickets = append(tickets, c.decodeTicket(t))
	}
	return tickets, nil
}

// GetTicket returns a ticket with its comments and field entries.
func (c *Client) GetTicket(ctx context.Context, id int64) (domain.SourceTicket, error) {
	var raw ticketJSON
	if err := c.getJSON(ctx, "/tickets/"+strconv.FormatInt(id, 10)+".json", nil, &raw); err != nil {
		return domain.SourceTicket{}, err
	}
	return c.decodeTicket(raw), nil
}

// GetUser returns a helpdesk user. Unknown ids fail with NOT_FOUND.
func (c *Client) GetUser(ctx context.Context, id int64) (domain.SourceUser, error) {
	var raw userJSON
	if err := c.getJSON(ctx, "/users/"+strconv.FormatInt(id, 10)+".json", nil, &raw); err != nil {
		return domain.SourceUser{}, err
	}
	user := raw.toDomain()
	if user.UpdatedAt.IsZero() {
		c.logger.Warn("user has no updated_at; its requester record will never be refreshed",
			zap.Int64("user_id", user.ID))
	}
	return user, nil
}

func (c *Client) decodeTicket(raw ticketJSON) domain.SourceTicket {
	ticket := raw.toDomain()
	if ticket.UpdatedAt.IsZero() {
		c.logger.Warn("ticket has no updated_at; its record will never be refreshed",
			zap.Int64("ticket_id", raw.NiceID))
	}
	if ticket.Status == "" {
		c.logger.Warn("ticket status not recognized", zap.Int64("ticket_id", raw.NiceID),
			zap.Error(apperrors.NewUnknownEnumValue("status_id", strconv.Itoa(raw.StatusID))))
	}
	if ticket.Channel == "" {
		c.logger.Debug("ticket channel not recognized", zap.Int64("ticket_id", raw.NiceID),
			zap.Error(apperrors.NewUnknownEnumValue("via_id", strconv.Itoa(raw.ViaID))))
	}
	return ticket
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewUpstreamError(systemName, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("helpdesk request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return apperrors.FromHTTPStatus(systemName, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("helpdesk: decode %s: %w", path, err)
	}
	return nil
}
