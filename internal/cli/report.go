package cli

import (
	"fmt"

	"cdr.dev/slog"
	"github.com/spf13/cobra"

	"github.com/teamclock/teamclock/internal/database"
	"github.com/teamclock/teamclock/internal/reporter"
)

func (r *root) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Connect(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Initialize(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date")
			return nil
		},
	}
}

func (r *root) reportCmd() *cobra.Command {
	var (
		email      string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "report [day|week|month]",
		Short: "Print a user's productivity report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period := "week"
			if len(args) > 0 {
				period = args[0]
			}
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Connect(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Initialize(); err != nil {
				return err
			}

			ctx := cmd.Context()
			repo := database.NewRepository(db)
			user, err := repo.GetUserByEmail(ctx, email)
			if err != nil {
				return err
			}
			rep := reporter.New(repo, reporter.Options{
				Location: cfg.Location(),
				Logger:   slog.Make(),
			})
			report, err := rep.Productivity(ctx, user.ID, period)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				s, err := rep.FormatReportJSON(report)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, s)
				return nil
			}
			fmt.Fprintf(out, "User: %s <%s>\n", user.Name, user.Email)
			fmt.Fprint(out, rep.FormatReportText(report))
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email of the user to report on")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
