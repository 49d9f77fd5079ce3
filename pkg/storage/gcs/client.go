package gcs

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/logger"
)

const (
	storageScope   = "https://www.googleapis.com/auth/devstorage.read_write"
	defaultAPIBase = "https://storage.googleapis.com"
	requestTimeout = 30 * time.Second
	pingTimeout    = 5 * time.Second
)

var errNotInitialized = errors.New("gcs client not initialized")

// Client stores product images through the GCS JSON API. Auth comes from an oauth2 transport,
// so every request carries a fresh bearer token.
type Client struct {
	http       *http.Client
	bucket     string
	publicBase string
	apiBase    string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient authenticates with, in order: inline service account JSON, the credentials file,
// then application default credentials (the metadata server on GCP). It fails when the
// bucket is not listable.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	// Token refreshes outlive the boot context.
	ts, err := tokenSource(context.WithoutCancel(ctx), gcp)
	if err != nil {
		return nil, err
	}
	httpClient := oauth2.NewClient(context.WithoutCancel(ctx), ts)
	httpClient.Timeout = requestTimeout

	c := &Client{
		http:       httpClient,
		bucket:     cfg.BucketName,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		apiBase:    defaultAPIBase,
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", c.bucket), "gcs client initialized")
	}
	return c, nil
}

func tokenSource(ctx context.Context, gcp config.GCPConfig) (oauth2.TokenSource, error) {
	raw := []byte(gcp.CredentialsJSON)
	if len(raw) == 0 && gcp.ApplicationCredentials != "" {
		var err error
		if raw, err = os.ReadFile(gcp.ApplicationCredentials); err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
	}
	if len(raw) == 0 {
		ts, err := google.DefaultTokenSource(ctx, storageScope)
		if err != nil {
			return nil, fmt.Errorf("application default credentials: %w", err)
		}
		return ts, nil
	}

	conf, err := google.JWTConfigFromJSON(raw, storageScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	return conf.TokenSource(ctx), nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

func (c *Client) Close() error {
	return nil
}

// Ping lists at most one object, which needs the same storage.objects permissions uploads do.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.http == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	endpoint := c.endpoint("/storage/v1/b/%s/o", c.bucket) + "?maxResults=1"
	resp, err := c.send(ctx, http.MethodGet, endpoint, nil, "", http.StatusOK)
	if err != nil {
		return fmt.Errorf("list bucket %s: %w", c.bucket, err)
	}
	return resp.Body.Close()
}

// Upload stores body at bucket/object in one media request and returns the object's public URL.
// An empty bucket means the configured one.
func (c *Client) Upload(ctx context.Context, bucket, object, contentType string, body io.Reader) (string, error) {
	if c == nil || c.http == nil {
		return "", errNotInitialized
	}
	bucket = c.orDefault(bucket)
	if bucket == "" || object == "" {
		return "", errors.New("gcs bucket and object are required")
	}

	endpoint := c.endpoint("/upload/storage/v1/b/%s/o", bucket) + "?" + url.Values{
		"uploadType": {"media"},
		"name":       {object},
	}.Encode()
	resp, err := c.send(ctx, http.MethodPost, endpoint, body, contentType, http.StatusOK)
	if err != nil {
		return "", fmt.Errorf("gcs upload: %w", err)
	}
	defer resp.Body.Close()

	var stored struct {
		Name   string `json:"name"`
		Bucket string `json:"bucket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return "", fmt.Errorf("decode gcs upload response: %w", err)
	}
	return c.PublicURL(cmp.Or(stored.Bucket, bucket), cmp.Or(stored.Name, object)), nil
}

// DeleteObject removes bucket/object; an object that is already gone counts as deleted.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	if c == nil || c.http == nil {
		return errNotInitialized
	}
	endpoint := c.endpoint("/storage/v1/b/%s/o/%s", c.orDefault(bucket), object)
	resp, err := c.send(ctx, http.MethodDelete, endpoint, nil, "", http.StatusOK, http.StatusNoContent, http.StatusNotFound)
	if err != nil {
		return fmt.Errorf("gcs delete: %w", err)
	}
	return resp.Body.Close()
}

// PublicURL renders the browser-facing URL of an object, escaping each path segment.
func (c *Client) PublicURL(bucket, object string) string {
	base := defaultAPIBase
	if c != nil && c.publicBase != "" {
		base = c.publicBase
	}
	segments := strings.Split(object, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return base + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

func (c *Client) orDefault(bucket string) string {
	return cmp.Or(bucket, c.bucket)
}

// endpoint fills a path template with escaped segments on the API base.
func (c *Client) endpoint(pathFmt string, segments ...string) string {
	escaped := make([]any, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.TrimRight(cmp.Or(c.apiBase, defaultAPIBase), "/") + fmt.Sprintf(pathFmt, escaped...)
}

// send performs the request and returns the response only when its status is one of want.
// The caller owns the body of a returned response.
func (c *Client) send(ctx context.Context, method, endpoint string, body io.Reader, contentType string, want ...int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(want, resp.StatusCode) {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			return nil, fmt.Errorf("%s %s: %s", method, resp.Status, msg)
		}
		return nil, fmt.Errorf("%s %s", method, resp.Status)
	}
	return resp, nil
}
