package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mcoot/koragame/internal/api/response"
	"github.com/mcoot/koragame/internal/dependencies/clock"
	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/replica"
)

func newPlayCmd() *cobra.Command {
	var retries uint64

	cmd := &cobra.Command{
		Use:   "play <match-id> <card>",
		Short: "Play a card",
		Long: `Play a card such as 10S or 7h. The move is checked locally against
the latest server state before it is sent, and a failed send is retried
with the same expected turn so it is never applied twice.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID := model.MatchID(args[0])
			card, err := model.ParseCard(args[1])
			if err != nil {
				return err
			}

			me, err := currentPlayer(cmd)
			if err != nil {
				return err
			}

			replicaCfg := replica.DefaultConfig()
			replicaCfg.MaxRetries = retries
			r := replica.New(
				NewMatchServer(client),
				matchID,
				model.PlayerID(me.ID),
				clock.New(),
				replicaCfg,
				cliLogger(cmd.ErrOrStderr()),
			)

			if err := r.Reconcile(cmd.Context()); err != nil {
				return err
			}
			if _, err := r.Play(card); err != nil {
				return fmt.Errorf("cannot play %s: %w", card, err)
			}
			if err := r.Flush(cmd.Context()); err != nil {
				return err
			}

			confirmed := r.Confirmed()
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(response.MatchFromModel(&confirmed, model.PlayerID(me.ID)))
			return nil
		},
	}

	cmd.Flags().Uint64Var(&retries, "retries", replica.DefaultConfig().MaxRetries, "Retries for a failed send")

	return cmd
}

// cliLogger logs to w, at debug level when --verbose is set
func cliLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
