// Package politehttp fetches pages from a single origin while staying under
// its rate tolerance, retrying transient failures and revalidating cached
// bodies with conditional requests.
package politehttp

import (
	"context"
	"digimon-scraper/internal/components/assert"
	"digimon-scraper/internal/components/chrono"
	"digimon-scraper/internal/components/telemetry"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch = "client.fetch"
)

var (
	ErrNotFound         = errors.New("page not found")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Policy holds the waits used by Client, the zero value of a field means no wait.
type Policy struct {
	// PoliteRetryDelay is waited before a retry when politeness is enabled.
	PoliteRetryDelay time.Duration
	// RetryJitterMin and RetryJitterMax bound the random wait before a retry
	// when politeness is disabled.
	RetryJitterMin time.Duration
	RetryJitterMax time.Duration
	// SuccessDelayMin and SuccessDelayMax bound the random wait after every
	// successful response when politeness is enabled.
	SuccessDelayMin time.Duration
	SuccessDelayMax time.Duration

	RequestsPerSecond float64
	Timeout           time.Duration
	UserAgent         string
}

func DefaultPolicy() Policy {
	return Policy{
		PoliteRetryDelay:  time.Minute,
		RetryJitterMin:    3 * time.Second,
		RetryJitterMax:    7 * time.Second,
		SuccessDelayMin:   30 * time.Second,
		SuccessDelayMax:   20 * time.Minute,
		RequestsPerSecond: 1,
		Timeout:           30 * time.Second,
	}
}

// Options are decided per request so that nothing about fetching is global.
type Options struct {
	Polite bool
	// RetryCount is the total number of attempts, values below 1 mean 1.
	RetryCount int
}

type Response struct {
	Body   []byte
	Status int
	Header http.Header
}

type Client struct {
	http   *resty.Client
	policy Policy
	time   chrono.API
	tel    telemetry.API
}

func NewClient(baseUrl string, policy Policy, time chrono.API, tel telemetry.API) (*Client, error) {
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.NotEmptyStr(policy.UserAgent)

	tel = telemetry.NewScopedAPI("politehttp", tel)

	parsedBaseUrl, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", policy.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	if policy.Timeout > 0 {
		httpClient.SetTimeout(policy.Timeout)
	}

	if policy.RequestsPerSecond > 0 {
		burst := int(policy.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		http:   httpClient,
		policy: policy,
		time:   time,
		tel:    tel,
	}, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryWait returns how long to wait before the next attempt.
func (c *Client) retryWait(res *resty.Response, polite bool) time.Duration {
	wait := chrono.Between(c.policy.RetryJitterMin, c.policy.RetryJitterMax)
	if polite {
		wait = c.policy.PoliteRetryDelay
	}
	if res == nil {
		return wait
	}
	retryAfter := res.Header().Get("Retry-After")
	if retryAfter == "" {
		return wait
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		if d := time.Duration(seconds) * time.Second; d > wait {
			return d
		}
		return wait
	}
	if at, err := http.ParseTime(retryAfter); err == nil {
		if d := at.Sub(c.time.Now()); d > wait {
			return d
		}
	}
	return wait
}

// Fetch performs a GET of rawUrl.
//
//   - transport errors, 429 and 5xx are retried after a wait until RetryCount
//     attempts are used up, then ErrRetriesExhausted is returned.
//   - 404 returns ErrNotFound together with the response.
//   - 304 is returned as is, it is up to the caller to use its cached body.
//   - 200 returns the body, after a long random sleep when polite.
//   - anything else returns ErrUnexpectedStatus.
func (c *Client) Fetch(ctx context.Context, rawUrl string, headers map[string]string, opts Options) (*Response, error) {
	attempts := opts.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			Get(rawUrl)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			res = nil
		} else {
			status := res.StatusCode()
			switch {
			case status == http.StatusOK:
				if opts.Polite {
					err = c.time.Sleep(ctx, chrono.Between(c.policy.SuccessDelayMin, c.policy.SuccessDelayMax))
					if err != nil {
						return nil, err
					}
				}
				return &Response{Body: res.Body(), Status: status, Header: res.Header()}, nil
			case status == http.StatusNotModified:
				return &Response{Status: status, Header: res.Header()}, nil
			case status == http.StatusNotFound:
				c.tel.ReportWarning(report_client_fetch, "not found", rawUrl)
				return &Response{Status: status, Header: res.Header()}, ErrNotFound
			case retryable(status):
				lastErr = fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status())
			default:
				return &Response{Body: res.Body(), Status: status, Header: res.Header()},
					fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status())
			}
		}

		if attempt == attempts {
			break
		}
		wait := c.retryWait(res, opts.Polite)
		c.tel.ReportDebug(report_client_fetch, "retrying", rawUrl, attempt, wait.String(), lastErr)
		err = c.time.Sleep(ctx, wait)
		if err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, rawUrl, attempts, lastErr)
}
