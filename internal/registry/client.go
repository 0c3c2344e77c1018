package registry

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"saft-reconciliation-service/pkg/errors"
	"saft-reconciliation-service/pkg/logger"
)

const (
	DefaultAccountsURL = "https://data.brreg.no/regnskapsregisteret/regnskap/{orgnr}"
	DefaultEntityURL   = "https://data.brreg.no/enhetsregisteret/api/enheter/{orgnr}"

	AccountsSource = "Regnskapsregisteret"
	EntitySource   = "Enhetsregisteret"

	// orgnrPlaceholder is replaced by the normalized number in URL templates
	orgnrPlaceholder = "{orgnr}"

	maxResponseBytes = 16 << 20
)

// retryStatuses are the response codes a GET is retried on
var retryStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ClientConfig holds the registry endpoints and transport settings
type ClientConfig struct {
	AccountsURL string        `mapstructure:"accounts_url"`
	EntityURL   string        `mapstructure:"entity_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryMax    int           `mapstructure:"retries"`
	BackoffMin  time.Duration `mapstructure:"backoff_min"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

// DefaultClientConfig returns the production endpoints with a 15s timeout
// and three retries backing off between one and eight seconds.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		AccountsURL: DefaultAccountsURL,
		EntityURL:   DefaultEntityURL,
		Timeout:     15 * time.Second,
		RetryMax:    3,
		BackoffMin:  time.Second,
		BackoffMax:  8 * time.Second,
	}
}

// Validate checks the configuration
func (c ClientConfig) Validate() error {
	for setting, template := range map[string]string{
		"registry.accounts_url": c.AccountsURL,
		"registry.entity_url":   c.EntityURL,
	} {
		if !strings.Contains(template, orgnrPlaceholder) {
			return errors.ConfigurationError(errors.CodeInvalidConfig, setting, template,
				fmt.Errorf("URL template must contain %s", orgnrPlaceholder))
		}
		if _, err := url.Parse(strings.ReplaceAll(template, orgnrPlaceholder, "0")); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, setting, template, err)
		}
	}
	if c.Timeout <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "registry.timeout", c.Timeout, nil)
	}
	if c.RetryMax < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "registry.retries", c.RetryMax, nil)
	}
	if c.BackoffMin < 0 || c.BackoffMax < c.BackoffMin {
		return errors.ConfigurationError(errors.CodeConfigConflict, "registry.backoff_max", c.BackoffMax,
			fmt.Errorf("backoff_max must be at least backoff_min (%s)", c.BackoffMin))
	}
	return nil
}

// Client performs registry lookups through the cache
type Client struct {
	config ClientConfig
	http   *retryablehttp.Client
	cache  *Cache
	logger logger.Logger
}

// NewClient creates a Client. A nil cache disables caching.
func NewClient(config ClientConfig, cache *Cache, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("registry")

	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient = &http.Client{Timeout: config.Timeout}
	httpClient.RetryMax = config.RetryMax
	httpClient.RetryWaitMin = config.BackoffMin
	httpClient.RetryWaitMax = config.BackoffMax
	httpClient.CheckRetry = checkRetry
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient.Logger = logger.NewLeveledAdapter(log)

	return &Client{
		config: config,
		http:   httpClient,
		cache:  cache,
		logger: log,
	}
}

// checkRetry retries GET requests on connection failures and on the
// statuses in retryStatuses
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if resp.Request != nil && resp.Request.Method != http.MethodGet {
		return false, nil
	}
	return retryStatuses[resp.StatusCode], nil
}

// FetchAccounts returns the annual accounts filed for orgnr. Array
// responses are passed through.
func (c *Client) FetchAccounts(ctx context.Context, orgnr string) (Result, error) {
	normalized, err := NormalizeOrgNumber(orgnr)
	if err != nil {
		return Result{}, err
	}
	target := strings.ReplaceAll(c.config.AccountsURL, orgnrPlaceholder, normalized)
	return c.fetch(ctx, target, AccountsSource, ListPassthrough), nil
}

// FetchEntity returns the entity record of orgnr. For array responses the
// first object is used.
func (c *Client) FetchEntity(ctx context.Context, orgnr string) (Result, error) {
	normalized, err := NormalizeOrgNumber(orgnr)
	if err != nil {
		return Result{}, err
	}
	target := strings.ReplaceAll(c.config.EntityURL, orgnrPlaceholder, normalized)
	return c.fetch(ctx, target, EntitySource, ListFirstDict), nil
}

func (c *Client) fetch(ctx context.Context, target, source string, policy ListPolicy) Result {
	key := Fingerprint(target, policy)
	log := c.logger.WithFields(logger.Fields{"url": target, "list_policy": string(policy)})

	if c.cache != nil {
		if outcome, ok := c.cache.Get(ctx, key); ok {
			log.Debug("Registry lookup served from cache")
			return NewResult(source, outcome, true)
		}
	}

	start := time.Now()
	outcome := c.request(ctx, target, policy)
	cached := false
	if c.cache != nil {
		cached = c.cache.Put(ctx, key, outcome)
	}

	result := NewResult(source, outcome, false)
	log.WithFields(logger.Fields{
		"duration":   time.Since(start).String(),
		"error_code": result.ErrorCode,
		"cached":     cached,
	}).Debug("Registry lookup finished")
	return result
}

func (c *Client) request(ctx context.Context, target string, policy ListPolicy) Outcome {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Transient{Kind: KindRequest, Detail: fmt.Sprintf("unexpected error (%v)", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusNotFound:
		return NotFound{}
	case code == http.StatusTooManyRequests:
		return Transient{Kind: KindRateLimited, Detail: "too many requests (429)"}
	case code >= http.StatusInternalServerError:
		return Transient{Kind: KindServer, Detail: fmt.Sprintf("service responded with %d", code)}
	case code >= http.StatusBadRequest:
		return Transient{Kind: KindHTTP, Detail: fmt.Sprintf("service responded with %d", code)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyError(err)
	}
	return shapePayload(body, policy)
}

// classifyError maps a transport error to a transient kind
func classifyError(err error) Outcome {
	var urlErr *url.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &urlErr) && urlErr.Timeout()) {
		return Transient{Kind: KindTimeout, Detail: "timed out"}
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return Transient{Kind: KindTimeout, Detail: "timed out"}
	}

	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return Transient{Kind: KindConnection, Detail: fmt.Sprintf("connection error (%v)", err)}
	}

	return Transient{Kind: KindRequest, Detail: fmt.Sprintf("unexpected error (%v)", err)}
}

// shapePayload validates the body and applies the list policy. Objects are
// always accepted; anything that is neither object nor permitted array is
// invalid_json.
func shapePayload(body []byte, policy ListPolicy) Outcome {
	trimmed := bytes.TrimSpace(body)

	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return Malformed{Reason: CodeInvalidJSON, Detail: fmt.Sprintf("invalid JSON (%v)", err)}
	}

	switch trimmed[0] {
	case '{':
		return Success{Payload: json.RawMessage(trimmed)}
	case '[':
		switch policy {
		case ListPassthrough:
			return Success{Payload: json.RawMessage(trimmed)}
		case ListFirstDict:
			var elements []json.RawMessage
			if err := json.Unmarshal(trimmed, &elements); err == nil {
				for _, element := range elements {
					if element = bytes.TrimSpace(element); len(element) > 0 && element[0] == '{' {
						return Success{Payload: element}
					}
				}
			}
			return Malformed{Reason: CodeInvalidJSON, Detail: "unexpected response shape (list)"}
		}
	}
	return Malformed{Reason: CodeInvalidJSON, Detail: "unexpected response shape"}
}
