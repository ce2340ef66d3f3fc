package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eachlabs/steer/internal/config"
	"github.com/eachlabs/steer/internal/session"
	"github.com/eachlabs/steer/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"sess"},
	Short:   "Manage saved sessions",
	Long: `List, inspect and delete saved chat sessions.

Examples:
  steer sessions list
  steer sessions show 20250101-120000-ab12
  steer sessions delete 20250101-120000-ab12`,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func sessionManager() *session.Manager {
	return session.NewManager(config.SessionsDir())
}

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := sessionManager().List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if jsonOut {
			return json.NewEncoder(out).Encode(records)
		}

		if len(records) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			fmt.Fprintln(out, "Start one with: steer chat")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENDPOINT\tPAGE\tMESSAGES\tTASKS\tUPDATED")
		for _, r := range records {
			age := time.Since(r.UpdatedAt).Round(time.Second).String()
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s ago\n",
				r.ID, r.Endpoint, r.State.CurrentRoute, len(r.State.Messages), len(r.State.Tasks), age)
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := sessionManager().Load(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		st := rec.State
		fmt.Fprintf(out, "Session:  %s\n", rec.ID)
		fmt.Fprintf(out, "Endpoint: %s\n", rec.Endpoint)
		fmt.Fprintf(out, "Created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Page:     %s\n", st.CurrentRoute)
		if st.Color != "" {
			fmt.Fprintf(out, "Color:    %s (%s)\n", st.Color, st.ColorValue)
		}
		if st.Email != nil {
			fmt.Fprintf(out, "Email:    %s\n", *st.Email)
		}

		if len(st.Tasks) > 0 {
			fmt.Fprintln(out, "\nTasks:")
			for _, t := range st.Tasks {
				mark := " "
				if t.Completed {
					mark = "x"
				}
				fmt.Fprintf(out, "  [%s] %d. %s\n", mark, t.ID, t.Title)
			}
		}

		if len(st.Messages) > 0 {
			fmt.Fprintln(out, "\nMessages:")
			for _, e := range st.Messages {
				fmt.Fprintf(out, "  %-6s %s\n", roleLabel(e.Role), e.Text)
			}
		}
		return nil
	},
}

func roleLabel(r store.Role) string {
	switch r {
	case store.RoleUser:
		return "you"
	case store.RoleBot:
		return "bot"
	default:
		return "·"
	}
}

var sessionsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := sessionManager().Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
		return nil
	},
}
