// Package connector builds integration providers from stored config.
package connector

import (
	"sort"

	"github.com/teamclock/teamclock/internal/apperr"
	"github.com/teamclock/teamclock/pkg/integrations/common"
	"github.com/teamclock/teamclock/pkg/integrations/github"
	"github.com/teamclock/teamclock/pkg/integrations/slack"
	"github.com/teamclock/teamclock/pkg/integrations/trello"
)

// Options configure every provider; BaseURLs override API roots per kind.
type Options struct {
	common.Options
	BaseURLs map[common.Kind]string
}

// builder constructs a provider from its config map
type builder struct {
	required []string
	build    func(cfg map[string]string, opts common.Options) (common.Provider, error)
}

var builders = map[common.Kind]builder{
	common.KindSlack: {
		required: []string{"webhook_url"},
		build: func(cfg map[string]string, opts common.Options) (common.Provider, error) {
			return provider(slack.New(cfg["webhook_url"], opts))
		},
	},
	common.KindTrello: {
		required: []string{"api_key", "token"},
		build: func(cfg map[string]string, opts common.Options) (common.Provider, error) {
			return provider(trello.New(cfg["api_key"], cfg["token"], opts))
		},
	},
	common.KindGitHub: {
		required: []string{"token"},
		build: func(cfg map[string]string, opts common.Options) (common.Provider, error) {
			return provider(github.New(cfg["token"], opts))
		},
	},
}

// provider keeps a failed constructor's typed nil out of the interface.
func provider[P common.Provider](p P, err error) (common.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// New returns the provider for kind, checking that cfg carries its keys.
func New(kind common.Kind, cfg map[string]string, opts Options) (common.Provider, error) {
	b, ok := builders[kind]
	if !ok {
		return nil, apperr.Invalid("unknown integration type: %s", kind)
	}
	for _, key := range b.required {
		if cfg[key] == "" {
			return nil, apperr.Invalid("%s is required", key)
		}
	}

	po := opts.Options
	po.BaseURL = opts.BaseURLs[kind]
	return b.build(cfg, po)
}

// Kinds lists the supported integration types.
func Kinds() []common.Kind {
	out := make([]common.Kind, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RequiredKeys returns the config keys kind needs, nil when unknown.
func RequiredKeys(kind common.Kind) []string {
	return builders[kind].required
}
