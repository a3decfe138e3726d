// Package trello creates cards through the Trello REST API.
package trello

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/pkg/integrations/common"
)

const (
	DefaultBaseURL = "https://api.trello.com/1"

	// boardsShown caps the boards returned by Verify.
	boardsShown = 5
)

type board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Provider struct {
	apiKey  string
	token   string
	baseURL string
	opts    common.Options
}

func New(apiKey, token string, opts common.Options) (*Provider, error) {
	if apiKey == "" || token == "" {
		return nil, apperr.Invalid("api_key and token are required")
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Provider{
		apiKey:  apiKey,
		token:   token,
		baseURL: strings.TrimRight(base, "/"),
		opts:    opts,
	}, nil
}

func (p *Provider) Kind() common.Kind { return common.KindTrello }

// Verify lists the member's boards. An account without boards is treated
// as invalid credentials.
func (p *Provider) Verify(ctx context.Context) (*common.Verification, error) {
	var boards []board
	q := url.Values{"fields": {"name,url"}}
	if err := p.call(ctx, http.MethodGet, "/members/me/boards", q, "trello boards", &boards); err != nil {
		return nil, common.VerifyFailed(err, "Invalid Trello credentials")
	}
	if len(boards) == 0 {
		return nil, apperr.Invalid("Invalid Trello credentials")
	}
	if len(boards) > boardsShown {
		boards = boards[:boardsShown]
	}

	v := &common.Verification{Items: make([]common.Item, 0, len(boards))}
	for _, b := range boards {
		v.Items = append(v.Items, common.Item{ID: b.ID, Name: b.Name, URL: b.URL})
	}
	return v, nil
}

func (p *Provider) Perform(ctx context.Context, action common.Action) (*common.Result, error) {
	c, ok := action.(common.CreateCard)
	if !ok {
		return nil, apperr.Invalid("trello does not support %s", action.ActionName())
	}

	q := url.Values{"idList": {c.ListID}, "name": {c.Name}}
	if c.Description != "" {
		q.Set("desc", c.Description)
	}
	var card map[string]any
	if err := p.call(ctx, http.MethodPost, "/cards", q, "trello card creation", &card); err != nil {
		return nil, err
	}

	res := &common.Result{Data: card}
	res.ID, _ = card["id"].(string)
	res.URL, _ = card["url"].(string)
	return res, nil
}

// call authenticates with query parameters, as the Trello API expects.
func (p *Provider) call(ctx context.Context, method, path string, q url.Values, name string, out any) error {
	q.Set("key", p.apiKey)
	q.Set("token", p.token)
	endpoint := p.baseURL + path + "?" + q.Encode()

	return common.Do(ctx, p.opts.Logger, p.opts.Retry, name, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := p.opts.Client().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := common.CheckStatus(resp, http.StatusOK); err != nil {
			return err
		}
		return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "failed to decode trello response")
	})
}
