package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/eachlabs/steer/internal/protocol"
)

var validateLenient bool

var validateCmd = &cobra.Command{
	Use:   "validate [file|-]",
	Short: "Check a bot frame against the protocol",
	Long: `Parse a bot frame and print it in normalised form, or report where it
is invalid. Reads stdin when no file (or "-") is given.

Examples:
  steer validate reply.json
  echo '{"type":"navigate","to":"tasks"}' | steer validate
  steer validate --lenient frame.json   # missing "actions" is allowed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateLenient, "lenient", false, "treat a missing actions list as empty")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}

	fb, err := protocol.ParseWith(raw, protocol.Options{DefaultActions: validateLenient})
	if err != nil {
		var verr *protocol.ValidationError
		if jsonOut && errors.As(err, &verr) {
			_ = json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
				"valid":  false,
				"path":   verr.Path,
				"reason": verr.Reason,
			})
		}
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(out).Encode(map[string]any{
			"valid":    true,
			"feedback": fb,
		})
	}

	data, err := protocol.Marshal(fb)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	if msg, ok := fb.Text(); ok {
		fmt.Fprintf(out, "  message: %q\n", msg)
	}
	for i, a := range fb.Actions {
		fmt.Fprintf(out, "  actions[%d]: %s\n", i, a.Type())
	}
	return nil
}
