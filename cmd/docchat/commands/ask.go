package commands

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/54b3r/docchat/internal/logging"
	"github.com/54b3r/docchat/internal/tracing"
)

// NewAskCmd constructs the `docchat ask` command, which runs one chat turn
// and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	var (
		sessionID string
		sources   bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about the indexed documents",
		Long: `Run one conversational turn against the indexed documents.

Follow-up questions only resolve against earlier turns when the same --session
is reused with a persistent session backend (SESSION_BACKEND=sqlite or redis).

Examples:
  docchat ask "What is CUSC?"
  docchat ask --session demo "Which courses does it offer?"
  docchat ask --sources "Where is the campus?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() { err = finish(cmd, err) }()

			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			flush, _ := tracing.Install(tracing.ConfigFromEnv())
			defer flush()

			st, err := buildStack(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer st.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			res, err := st.pipeline.Chat(ctx, sessionID, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			if sources {
				fmt.Fprintln(out)
				for i, p := range res.Passages {
					fmt.Fprintf(out, "[%d] %s (score %.3f)\n", i+1, p.Source, p.RerankScore)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session identifier (default: a fresh UUID)")
	cmd.Flags().BoolVar(&sources, "sources", false, "Print the grounding passages after the answer")

	return cmd
}
