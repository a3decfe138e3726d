// Package cli is the teamclock command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/teamclock/teamclock/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the build information reported by the version command
// and the API index.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

type root struct {
	configPath string
	cfg        *config.Config
}

// New builds the root command.
func New() *cobra.Command {
	r := &root{}
	cmd := &cobra.Command{
		Use:   "teamclock",
		Short: "Team time tracking server",
		Long: `teamclock tracks working time for a team: timers, manual entries,
activity samples, screenshots, live presence and productivity reports,
served over an HTTP and WebSocket API.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&r.configPath, "config", "c", "", "YAML config file (default $TEAMCLOCK_CONFIG)")

	cmd.AddCommand(
		r.serveCmd(),
		r.stopCmd(),
		r.statusCmd(),
		r.migrateCmd(),
		r.reportCmd(),
		versionCmd(),
	)
	return cmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return New().Execute()
}

// loadConfig layers defaults, the config file and the environment.
func (r *root) loadConfig() (*config.Config, error) {
	if r.cfg != nil {
		return r.cfg, nil
	}
	cfg, err := config.New(r.configPath)
	if err != nil {
		return nil, err
	}
	r.cfg = cfg
	return cfg, nil
}
