package mirrornode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"fundchain/internal/app/port"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var accountIDPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ErrAccountNotFound is returned when the mirror node has no account for an address.
var ErrAccountNotFound = errors.New("account not found on mirror node")

// Client resolves ledger account ids through the mirror node REST API.
type Client struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
	cache   *cache.Cache
}

var _ port.AccountResolver = (*Client)(nil)

// NewClient creates a new mirror node Client. Resolved ids are cached for cacheTTL.
func NewClient(baseURL string, timeout, cacheTTL time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Client{
		client:  &fasthttp.Client{Name: "fundchain"},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("MirrorNodeClient"),
		cache:   cache.New(cacheTTL, 10*time.Minute),
	}
}

// ResolveAccountID implements port.AccountResolver.
func (c *Client) ResolveAccountID(ctx context.Context, address common.Address) (string, error) {
	cacheKey := strings.ToLower(address.Hex())
	if cached, found := c.cache.Get(cacheKey); found {
		c.logger.Debug("Account id served from cache", zap.String("address", cacheKey))
		return cached.(string), nil
	}

	info, err := c.GetAccount(ctx, address)
	if err != nil {
		return "", err
	}
	if info.Deleted {
		return "", fmt.Errorf("account %s for %s is deleted", info.Account, address.Hex())
	}
	if !accountIDPattern.MatchString(info.Account) {
		c.logger.Error("Mirror node returned a malformed account id", zap.String("address", cacheKey), zap.String("account", info.Account))
		return "", fmt.Errorf("malformed account id %q for %s", info.Account, address.Hex())
	}

	c.cache.Set(cacheKey, info.Account, cache.DefaultExpiration)
	return info.Account, nil
}

// GetAccount fetches the account record for an EVM address.
func (c *Client) GetAccount(ctx context.Context, address common.Address) (*AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	requestURL := fmt.Sprintf("%s/api/v1/accounts/%s", c.baseURL, address.Hex())
	c.logger.Debug("Requesting account from mirror node", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > c.timeout {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Error("Failed to execute request to mirror node", zap.String("url", requestURL), zap.Error(err))
		return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
	}

	rawBody := resp.Body()
	switch resp.StatusCode() {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		c.logger.Warn("Account not found on mirror node", zap.String("address", address.Hex()))
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address.Hex())
	default:
		msg := string(rawBody)
		var errResp errorResponse
		if err := json.Unmarshal(rawBody, &errResp); err == nil && len(errResp.Status.Messages) > 0 {
			msg = errResp.Status.Messages[0].Message
		}
		c.logger.Error("Mirror node request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.String("message", msg))
		return nil, fmt.Errorf("mirror node request to %s failed with status %d: %s", requestURL, resp.StatusCode(), msg)
	}

	var info AccountInfo
	if err := json.Unmarshal(rawBody, &info); err != nil {
		c.logger.Error("Failed to unmarshal mirror node response", zap.String("url", requestURL), zap.ByteString("responseBody", rawBody), zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal mirror node response from %s: %w", requestURL, err)
	}
	return &info, nil
}
