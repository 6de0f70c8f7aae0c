// Package records writes items, comments, tags and files into the record store's
// REST API.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

const (
	systemName   = "records"
	maxErrorBody = 4 << 10
	// tokenSlack renews the access token a little before it actually expires.
	tokenSlack = 30 * time.Second
)

// Client is an OAuth2 authenticated record store client. It is safe for
// concurrent use.
type Client struct {
	apiURL       string
	uploadURL    string
	clientID     string
	clientSecret string
	username     string
	password     string
	maxFileBytes int64
	http         *http.Client
	logger       *zap.Logger
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewClient builds a client from the destination configuration.
func NewClient(cfg config.DestinationConfig, logger *zap.Logger) *Client {
	return &Client{
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		uploadURL:    strings.TrimRight(cfg.UploadURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		username:     cfg.Username,
		password:     cfg.Password,
		maxFileBytes: cfg.MaxFileBytes(),
		http:         &http.Client{Timeout: cfg.HTTPTimeout()},
		logger:       logger,
		now:          time.Now,
	}
}

// FindByExternalID lists the items of appID tagged with externalID.
func (c *Client) FindByExternalID(ctx context.Context, appID int64, externalID string) ([]domain.DestinationRecord, error) {
	q := url.Values{}
	q.Set("external_id", externalID)
	var resp itemsResponse
	if err := c.do(ctx, http.MethodGet, "/item/app/"+itoa(appID)+"/v2/", q, nil, &resp); err != nil {
		return nil, err
	}
	records := make([]domain.DestinationRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		records = append(records, item.toDomain())
	}
	return records, nil
}

// CreateRecord adds an item to appID and returns its id.
func (c *Client) CreateRecord(ctx context.Context, appID int64, write domain.RecordWrite) (int64, error) {
	var created itemCreatedJSON
	if err := c.do(ctx, http.MethodPost, "/item/app/"+itoa(appID)+"/", silentQuery(write.Silent), newItemWrite(write), &created); err != nil {
		return 0, err
	}
	return created.ItemID, nil
}

// UpdateRecord rewrites the fields of an item.
func (c *Client) UpdateRecord(ctx context.Context, id int64, write domain.RecordWrite) error {
	return c.do(ctx, http.MethodPut, "/item/"+itoa(id), silentQuery(write.Silent), newItemWrite(write), nil)
}

// SearchContacts looks up the user contacts of a space by one attribute.
func (c *Client) SearchContacts(ctx context.Context, spaceID int64, field domain.ContactField, value string) ([]domain.DestinationContact, error) {
	q := url.Values{}
	q.Set(string(field), value)
	q.Set("type", "full")
	q.Set("contact_type", "user")
	var profiles []profileJSON
	if err := c.do(ctx, http.MethodGet, "/contact/space/"+itoa(spaceID)+"/", q, nil, &profiles); err != nil {
		return nil, err
	}
	contacts := make([]domain.DestinationContact, 0, len(profiles))
	for _, p := range profiles {
		contacts = append(contacts, p.toDomain())
	}
	return contacts, nil
}

// ListComments returns the comments on ref, oldest first.
func (c *Client) ListComments(ctx context.Context, ref domain.Reference) ([]domain.DestinationComment, error) {
	var raw []commentJSON
	if err := c.do(ctx, http.MethodGet, "/comment/"+refPath(ref)+"/", nil, nil, &raw); err != nil {
		return nil, err
	}
	comments := make([]domain.DestinationComment, 0, len(raw))
	for _, comment := range raw {
		comments = append(comments, domain.DestinationComment{ID: comment.CommentID, Value: comment.Value})
	}
	return comments, nil
}

// CreateComment posts text on ref with the given files attached.
func (c *Client) CreateComment(ctx context.Context, ref domain.Reference, text string, fileIDs []int64, silent bool) error {
	body := commentCreateJSON{Value: text, FileIDs: fileIDs}
	return c.do(ctx, http.MethodPost, "/comment/"+refPath(ref)+"/", silentQuery(silent), body, nil)
}

// SetTags replaces the tags on ref.
func (c *Client) SetTags(ctx context.Context, ref domain.Reference, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	return c.do(ctx, http.MethodPut, "/tag/"+refPath(ref)+"/", nil, tags, nil)
}

// UploadFromURL downloads rawURL and uploads it as a file, attached to ref
// when one is given. Only a download answered with 404 fails with NOT_FOUND;
// record store failures on the upload and attach legs never do.
func (c *Client) UploadFromURL(ctx context.Context, rawURL, filename string, ref *domain.Reference) (int64, error) {
	if filename == "" {
		filename = filenameOf(rawURL)
	}
	content, err := c.download(ctx, rawURL)
	if err != nil {
		return 0, err
	}

	fileID, err := c.upload(ctx, filename, content)
	if err != nil {
		return 0, destinationError(err)
	}
	if ref != nil {
		body := attachJSON{RefType: ref.Type, RefID: ref.ID}
		if err := c.do(ctx, http.MethodPost, "/file/"+itoa(fileID)+"/attach", nil, body, nil); err != nil {
			return 0, destinationError(fmt.Errorf("attach file %d to %s: %w", fileID, refPath(*ref), err))
		}
	}
	return fileID, nil
}

// destinationError reclassifies a record store 404 as an upstream failure so it
// cannot pass for a missing source file.
func destinationError(err error) error {
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return apperrors.NewUpstreamError(systemName, http.StatusNotFound, err)
	}
	return err
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamError("file source", 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperrors.FromHTTPStatus("file source", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.ContentLength > c.maxFileBytes {
		return nil, c.tooLarge(rawURL)
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, c.maxFileBytes+1))
	if err != nil {
		return nil, apperrors.NewUpstreamError("file source", resp.StatusCode, err)
	}
	if int64(len(content)) > c.maxFileBytes {
		return nil, c.tooLarge(rawURL)
	}
	return content, nil
}

func (c *Client) tooLarge(rawURL string) error {
	return apperrors.NewDomainError(apperrors.CodeValidation, "attachment exceeds the upload limit",
		http.StatusRequestEntityTooLarge, map[string]any{"url": rawURL, "max_bytes": c.maxFileBytes})
}

func (c *Client) upload(ctx context.Context, filename string, content []byte) (int64, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("filename", filename); err != nil {
		return 0, err
	}
	part, err := form.CreateFormFile("source", filename)
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(content); err != nil {
		return 0, err
	}
	if err := form.Close(); err != nil {
		return 0, err
	}

	var file fileJSON
	err = c.send(ctx, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"/file/v2/", bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", form.FormDataContentType())
		req.Header.Set("Authorization", "OAuth2 "+token)
		return req, nil
	}, &file)
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", filename, err)
	}
	return file.FileID, nil
}

func (c *Client) do(ctx context.Context, method, p string, q url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	u := c.apiURL + p
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.send(ctx, func(token string) (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "OAuth2 "+token)
		return req, nil
	}, out)
}

// send issues the request built by build. A 401 drops the cached access token
// and the request is sent once more with a fresh one.
func (c *Client) send(ctx context.Context, build func(token string) (*http.Request, error), out any) error {
	for attempt := 0; ; attempt++ {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}
		req, err := build(token)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return apperrors.NewUpstreamError(systemName, 0, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.invalidate(token)
			continue
		}
		return c.decode(req, resp, out)
	}
}

func (c *Client) decode(req *http.Request, resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("records request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode))
		return apperrors.FromHTTPStatus(systemName, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("records: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// token returns a valid access token, running the password grant when none is cached.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.NewUpstreamError(systemName, 0, err)
	}
	var granted tokenResponse
	if err := c.decode(req, resp, &granted); err != nil {
		return "", fmt.Errorf("records: authenticate: %w", err)
	}

	c.accessToken = granted.AccessToken
	c.expiresAt = c.now().Add(time.Duration(granted.ExpiresIn)*time.Second - tokenSlack)
	c.logger.Debug("records access token issued", zap.Time("expires_at", c.expiresAt))
	return c.accessToken, nil
}

func (c *Client) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == token {
		c.accessToken = ""
	}
}

func silentQuery(silent bool) url.Values {
	q := url.Values{}
	q.Set("silent", strconv.FormatBool(silent))
	return q
}

func refPath(ref domain.Reference) string {
	return string(ref.Type) + "/" + itoa(ref.ID)
}

func filenameOf(rawURL string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		if base := path.Base(parsed.Path); base != "/" && base != "." {
			return base
		}
	}
	return "file"
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
