package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/koragame/internal/api/request"
	"github.com/mcoot/koragame/internal/api/response"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match commands",
	}

	cmd.AddCommand(newMatchCreateCmd())
	cmd.AddCommand(newMatchAICmd())
	cmd.AddCommand(newMatchJoinCmd())
	cmd.AddCommand(newMatchListCmd())
	cmd.AddCommand(newMatchShowCmd())
	cmd.AddCommand(newMatchLogCmd())
	cmd.AddCommand(newMatchConcedeCmd())
	cmd.AddCommand(newMatchVerifyCmd())
	cmd.AddCommand(newMatchTransactionsCmd())

	return cmd
}

func newMatchCreateCmd() *cobra.Command {
	var bet int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a match and wait for an opponent",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Match
			req := request.CreateMatchRequest{BetAmount: bet}
			if err := client.Post(cmd.Context(), "/api/v1/matches", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().Int64Var(&bet, "bet", 0, "Bet amount (required)")
	_ = cmd.MarkFlagRequired("bet")

	return cmd
}

func newMatchAICmd() *cobra.Command {
	var (
		bet        int64
		difficulty string
		seed       string
	)

	cmd := &cobra.Command{
		Use:   "ai",
		Short: "Start a match against a bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Match
			req := request.CreateAIMatchRequest{BetAmount: bet, Difficulty: difficulty, Seed: seed}
			if err := client.Post(cmd.Context(), "/api/v1/matches/ai", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().Int64Var(&bet, "bet", 0, "Bet amount (required)")
	cmd.Flags().StringVar(&difficulty, "difficulty", "medium", "Bot difficulty: easy, medium, hard")
	cmd.Flags().StringVar(&seed, "seed", "", "Deal seed, 16 hex digits (default: random)")
	_ = cmd.MarkFlagRequired("bet")

	return cmd
}

func newMatchJoinCmd() *cobra.Command {
	var seed string

	cmd := &cobra.Command{
		Use:   "join <match-id>",
		Short: "Join a waiting match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Match
			req := request.JoinMatchRequest{Seed: seed}
			if err := client.Post(cmd.Context(), matchPath(args[0], "/join"), req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&seed, "seed", "", "Deal seed, 16 hex digits (default: random)")

	return cmd
}

func newMatchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.Match
			if err := client.Get(cmd.Context(), "/api/v1/matches", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newMatchShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <match-id>",
		Short: "Show match state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Match
			if err := client.Get(cmd.Context(), matchPath(args[0], ""), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newMatchLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <match-id>",
		Short: "Show the play log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.MatchLog
			if err := client.Get(cmd.Context(), matchPath(args[0], "/log"), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newMatchConcedeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "concede <match-id>",
		Short: "Concede the match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.ConcedeResponse
			if err := client.Post(cmd.Context(), matchPath(args[0], "/concede"), nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newMatchVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <match-id>",
		Short: "Replay the match log on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.VerifyResponse
			if err := client.Get(cmd.Context(), matchPath(args[0], "/verify"), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newMatchTransactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transactions <match-id>",
		Short: "Show settlement entries for a match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.Transaction
			if err := client.Get(cmd.Context(), matchPath(args[0], "/transactions"), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
