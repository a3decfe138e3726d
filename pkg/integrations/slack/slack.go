// Package slack posts notifications through a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/pkg/integrations/common"
)

const (
	botName        = "TeamClock Bot"
	connectMessage = "TeamClock integration connected successfully!"
)

type message struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Channel  string `json:"channel,omitempty"`
}

type Provider struct {
	webhookURL string
	opts       common.Options
}

// New returns a provider for webhookURL. The URL must be absolute http(s).
func New(webhookURL string, opts common.Options) (*Provider, error) {
	u, err := url.Parse(webhookURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, apperr.Invalid("Invalid Slack webhook URL")
	}
	return &Provider{webhookURL: webhookURL, opts: opts}, nil
}

func (p *Provider) Kind() common.Kind { return common.KindSlack }

// Verify sends a greeting through the webhook.
func (p *Provider) Verify(ctx context.Context) (*common.Verification, error) {
	if err := p.post(ctx, message{Text: connectMessage, Username: botName}); err != nil {
		return nil, common.VerifyFailed(err, "Invalid Slack webhook URL")
	}
	return &common.Verification{Items: []common.Item{}}, nil
}

func (p *Provider) Perform(ctx context.Context, action common.Action) (*common.Result, error) {
	n, ok := action.(common.Notify)
	if !ok {
		return nil, apperr.Invalid("slack does not support %s", action.ActionName())
	}
	if err := p.post(ctx, message{Text: n.Message, Username: botName, Channel: n.Channel}); err != nil {
		return nil, err
	}
	return &common.Result{}, nil
}

func (p *Provider) post(ctx context.Context, msg message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to encode slack message")
	}
	return common.Do(ctx, p.opts.Logger, p.opts.Retry, "slack notification", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.opts.Client().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return common.CheckStatus(resp, http.StatusOK)
	})
}
