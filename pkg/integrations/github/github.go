// Package github opens issues through the GitHub REST API.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/pkg/integrations/common"
)

// reposShown caps the repositories returned by Verify.
const reposShown = 10

type Provider struct {
	client *gh.Client
	opts   common.Options
}

// New authenticates every request with token through an oauth2 transport.
func New(token string, opts common.Options) (*Provider, error) {
	if token == "" {
		return nil, apperr.Invalid("token is required")
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, opts.Client())
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := gh.NewClient(httpClient)

	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, apperr.Invalid("invalid GitHub API URL")
		}
		client.BaseURL = base
	}
	return &Provider{client: client, opts: opts}, nil
}

func (p *Provider) Kind() common.Kind { return common.KindGitHub }

// Verify lists repositories the token can see. A token that sees none is
// treated as invalid.
func (p *Provider) Verify(ctx context.Context) (*common.Verification, error) {
	var repos []*gh.Repository
	err := common.Do(ctx, p.opts.Logger, p.opts.Retry, "github repositories", func(ctx context.Context) error {
		var (
			resp *gh.Response
			err  error
		)
		repos, resp, err = p.client.Repositories.ListByAuthenticatedUser(ctx, &gh.RepositoryListByAuthenticatedUserOptions{
			Sort:        "updated",
			ListOptions: gh.ListOptions{PerPage: reposShown},
		})
		return responseError(resp, err)
	})
	if err != nil {
		return nil, common.VerifyFailed(err, "Invalid GitHub token")
	}
	if len(repos) == 0 {
		return nil, apperr.Invalid("Invalid GitHub token")
	}
	if len(repos) > reposShown {
		repos = repos[:reposShown]
	}

	v := &common.Verification{Items: make([]common.Item, 0, len(repos))}
	for _, r := range repos {
		v.Items = append(v.Items, common.Item{
			ID:   strconv.FormatInt(r.GetID(), 10),
			Name: r.GetFullName(),
			URL:  r.GetHTMLURL(),
		})
	}
	return v, nil
}

func (p *Provider) Perform(ctx context.Context, action common.Action) (*common.Result, error) {
	ci, ok := action.(common.CreateIssue)
	if !ok {
		return nil, apperr.Invalid("github does not support %s", action.ActionName())
	}
	owner, repo, ok := strings.Cut(ci.Repo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, apperr.Invalid("repo must look like owner/name")
	}

	labels := ci.Labels
	if labels == nil {
		labels = []string{}
	}
	req := &gh.IssueRequest{
		Title:  gh.String(ci.Title),
		Body:   gh.String(ci.Body),
		Labels: &labels,
	}

	var issue *gh.Issue
	err := common.Do(ctx, p.opts.Logger, p.opts.Retry, "github issue creation", func(ctx context.Context) error {
		var (
			resp *gh.Response
			err  error
		)
		issue, resp, err = p.client.Issues.Create(ctx, owner, repo, req)
		return responseError(resp, err)
	})
	if err != nil {
		return nil, err
	}
	return &common.Result{
		ID:   strconv.Itoa(issue.GetNumber()),
		URL:  issue.GetHTMLURL(),
		Data: issue,
	}, nil
}

// responseError attaches the HTTP status to failures so the retry policy
// can tell server errors from rejected requests.
func responseError(resp *gh.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp != nil && resp.Response != nil && resp.StatusCode >= http.StatusBadRequest {
		return &common.StatusError{Code: resp.StatusCode, Err: err}
	}
	return err
}
