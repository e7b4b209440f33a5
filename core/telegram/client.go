package telegram

import (
	"fmt"
	"net"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/petbot/core/config"
	"github.com/m3rciful/petbot/core/telegram/netutil"
)

const (
	defaultPollTimeout = 10 * time.Second
	// pollSlack is added on top of the long-poll timeout for the HTTP deadlines,
	// since getUpdates holds the response for the whole poll.
	pollSlack = 15 * time.Second

	dialTimeout    = 5 * time.Second
	tlsTimeout     = 5 * time.Second
	idleTimeout    = 30 * time.Second
	keepAlive      = 30 * time.Second
	requestRetries = 2
	requestBackoff = time.Second
)

// allowedUpdates lists the update types the bot handles; everything else is
// filtered out by Telegram.
var allowedUpdates = []string{"message", "callback_query"}

// pollTimeout returns the configured long-poll timeout or the default.
func pollTimeout(cfg *coreconfig.Config) time.Duration {
	if cfg != nil && cfg.Telegram.LongPollTimeoutSeconds > 0 {
		return time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	return defaultPollTimeout
}

// BuildPoller returns the webhook or long poller selected by cfg.
func BuildPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
			AllowedUpdates: allowedUpdates,
			DropUpdates:    cfg.Telegram.DropPending,
		}
	}
	return &tele.LongPoller{
		Timeout:        pollTimeout(cfg),
		AllowedUpdates: allowedUpdates,
	}
}

// BuildHTTPClient returns the Bot API client. Its deadlines stay above poll so
// that long polls are never cut short.
func BuildHTTPClient(poll time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: poll + pollSlack,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: poll + 2*pollSlack,
		Transport: &retryTransport{
			base:    base,
			retries: requestRetries,
			backoff: requestBackoff,
		},
	}
}

// retryTransport repeats requests that failed before reaching Telegram, such
// as refused dials. Requests whose body cannot be rewound are sent once.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetry(err); attempt++ {
		if req.Body != nil && req.GetBody == nil {
			break
		}
		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			next.Body = body
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}
