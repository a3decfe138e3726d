package common

import (
	"context"
	"net/http"
	"time"

	"cdr.dev/slog"
)

// Kind names an external collaboration tool.
type Kind string

const (
	KindSlack  Kind = "slack"
	KindTrello Kind = "trello"
	KindGitHub Kind = "github"
)

// Provider is the universal interface for an outbound integration
type Provider interface {
	// Kind returns which tool this provider talks to
	Kind() Kind

	// Verify checks the stored credentials with a cheap upstream call
	Verify(ctx context.Context) (*Verification, error)

	// Perform runs one action against the tool
	Perform(ctx context.Context, action Action) (*Result, error)
}

// Action is one operation a provider can perform.
type Action interface {
	ActionName() string
}

// Notify posts a chat message.
type Notify struct {
	Message string `json:"message" validate:"required"`
	Channel string `json:"channel,omitempty"`
}

func (Notify) ActionName() string { return "notify" }

// CreateCard adds a card to a board list.
type CreateCard struct {
	ListID      string `json:"list_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

func (CreateCard) ActionName() string { return "create-card" }

// CreateIssue opens an issue in an "owner/name" repository.
type CreateIssue struct {
	Repo   string   `json:"repo" validate:"required"`
	Title  string   `json:"title" validate:"required"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

func (CreateIssue) ActionName() string { return "create-issue" }

// Item is a board or repository returned while verifying.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Verification is what a successful Verify learned about the account.
type Verification struct {
	Items []Item `json:"items"`
}

// Result describes the upstream object an action created.
type Result struct {
	ID   string `json:"id,omitempty"`
	URL  string `json:"url,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Options are shared by every provider.
type Options struct {
	// HTTPClient is used for all calls, http.DefaultClient when nil
	HTTPClient *http.Client

	// BaseURL overrides the provider's API root
	BaseURL string

	Retry  RetryOptions
	Logger slog.Logger
}

func (o Options) Client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

// RetryOptions bound every outbound call.
type RetryOptions struct {
	// Timeout applies to each attempt
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first
	MaxRetries uint64

	// InitialInterval is the first backoff delay
	InitialInterval time.Duration
}
