package ckan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	dghttp "github.com/ligustah/datagov/internal/http"
)

// DefaultBaseURL is the data.gov CKAN API root.
const DefaultBaseURL = "https://catalog.data.gov/api/3"

// maxResponse bounds an action response body.
const maxResponse = 64 << 20

// Options configures a catalog client.
type Options struct {
	// BaseURL is the API root, without the trailing /action.
	// Default: DefaultBaseURL
	BaseURL string

	// APIKey is sent in the Authorization header when set.
	APIKey string

	// HTTP carries requests and the retry policy.
	// Default: a client built from dghttp.DefaultOptions()
	HTTP *dghttp.Client

	Logger logr.Logger
}

// Client calls CKAN action endpoints.
type Client struct {
	base   string
	apiKey string
	http   *dghttp.Client
	log    logr.Logger
}

// NewClient creates a catalog client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTP == nil {
		opts.HTTP = dghttp.NewClient(dghttp.DefaultOptions())
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}

	return &Client{
		base:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey: opts.APIKey,
		http:   opts.HTTP,
		log:    opts.Logger,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// SearchParams selects datasets for PackageSearch.
type SearchParams struct {
	Query string
	// Rows is the page size; zero leaves the catalog default.
	Rows  int
	Start int
	// Organization and Format restrict results by publisher and
	// resource format.
	Organization string
	Format       string
}

// FilterQuery builds the Solr fq parameter for an organization and a
// resource format filter. Empty values are left out.
func FilterQuery(organization, format string) string {
	var parts []string
	if organization != "" {
		parts = append(parts, fmt.Sprintf("organization:%q", organization))
	}
	if format != "" {
		parts = append(parts, fmt.Sprintf("res_format:%q", format))
	}
	return strings.Join(parts, " AND ")
}

// PackageShow fetches one dataset by id or name.
func (c *Client) PackageShow(ctx context.Context, id string) (*Package, error) {
	params := url.Values{}
	params.Set("id", id)

	var pkg Package
	if err := c.action(ctx, "package_show", params, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// PackageSearch runs a dataset search.
func (c *Client) PackageSearch(ctx context.Context, p SearchParams) (*SearchResult, error) {
	params := url.Values{}
	if p.Query != "" {
		params.Set("q", p.Query)
	}
	if p.Rows > 0 {
		params.Set("rows", strconv.Itoa(p.Rows))
	}
	if p.Start > 0 {
		params.Set("start", strconv.Itoa(p.Start))
	}
	if fq := FilterQuery(p.Organization, p.Format); fq != "" {
		params.Set("fq", fq)
	}

	var result SearchResult
	if err := c.action(ctx, "package_search", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OrganizationList returns organization names. A limit of zero leaves
// the catalog default.
func (c *Client) OrganizationList(ctx context.Context, limit int) ([]string, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var names []string
	if err := c.action(ctx, "organization_list", params, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// DatasetAutocomplete returns datasets whose name or title match a
// partial query.
func (c *Client) DatasetAutocomplete(ctx context.Context, q string, limit int) ([]AutocompleteResult, error) {
	params := url.Values{}
	params.Set("q", q)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var results []AutocompleteResult
	if err := c.action(ctx, "package_autocomplete", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"__type"`
}

const notFoundType = "Not Found Error"

// action calls one action endpoint and decodes its result into out.
func (c *Client) action(ctx context.Context, name string, params url.Values, out any) error {
	endpoint := c.base + "/action/" + name
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body []byte
	attempts, err := c.http.Retry(ctx, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponse))
		return err
	})
	c.log.V(2).Info("catalog request", "action", name, "attempts", attempts, "error", err)

	if err != nil {
		return c.requestError(ctx, name, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &UpstreamError{Action: name, Status: http.StatusOK, Message: "malformed response", Err: err}
	}
	if !env.Success {
		if env.Error != nil && env.Error.Type == notFoundType {
			return fmt.Errorf("%w: %s", ErrNotFound, env.Error.Message)
		}
		msg := "action reported failure"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return &UpstreamError{Action: name, Status: http.StatusOK, Message: msg}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return &UpstreamError{Action: name, Status: http.StatusOK, Message: "no result data in response"}
	}

	if err := json.Unmarshal(env.Result, out); err != nil {
		return &UpstreamError{Action: name, Status: http.StatusOK, Message: "unexpected result shape", Err: err}
	}
	return nil
}

func (c *Client) requestError(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil {
		return err
	}

	var statusErr *dghttp.StatusError
	if !errors.As(err, &statusErr) {
		return &UpstreamError{Action: name, Message: err.Error(), Err: err}
	}

	var env envelope
	msg := ""
	if json.Unmarshal(statusErr.Body, &env) == nil && env.Error != nil {
		if env.Error.Type == notFoundType {
			return fmt.Errorf("%w: %s", ErrNotFound, env.Error.Message)
		}
		msg = env.Error.Message
	}
	if statusErr.Code == http.StatusNotFound {
		if msg == "" {
			msg = name
		}
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(statusErr.Body))
	}
	return &UpstreamError{Action: name, Status: statusErr.Code, Message: msg, Err: err}
}
