package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"akiverse/internal/arcade"
	cl "akiverse/internal/cli"
	"akiverse/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	apiBase := config.LoadCLIFromEnv().APIBaseURL
	if err := newRootCmd(&apiBase).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(apiBase *string) *cobra.Command {
	root := &cobra.Command{
		Use:          "akv",
		Short:        "Akiverse arcade machine client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(apiBase, "api", *apiBase, "akiverse API base URL")

	root.AddCommand(
		newLoginCmd(apiBase),
		newLogoutCmd(),
		newInstallCmd(apiBase),
		newUninstallCmd(apiBase),
		newUpdateCmd(apiBase),
		newDismantleCmd(apiBase),
		newWithdrawCmd(apiBase),
		newDepositCmd(apiBase),
		newPlayableCmd(apiBase),
	)
	return root
}

// authedClient loads the saved session and builds a client bound to it. The
// session's API wins unless --api was passed.
func authedClient(cmd *cobra.Command, apiBase *string) (*cl.Client, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return nil, fmt.Errorf("login required: %w", err)
	}
	base := sess.BaseURL(*apiBase)
	if apiFlagSet(cmd) {
		base = strings.TrimRight(strings.TrimSpace(*apiBase), "/")
	}
	return cl.NewClient(base, sess), nil
}

func apiFlagSet(cmd *cobra.Command) bool {
	f := cmd.Root().PersistentFlags().Lookup("api")
	return f != nil && f.Changed
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save the user id and wallet address sent with every request",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := promptRequired("User ID")
			if err != nil {
				return err
			}
			wallet, err := promptOptional("Wallet address (optional)")
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{UserID: userID, WalletAddress: wallet, APIBaseURL: *apiBase}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Session saved for %s.", strings.TrimRight(strings.TrimSpace(*apiBase), "/")))
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newInstallCmd(apiBase *string) *cobra.Command {
	var autoRenew bool
	cmd := &cobra.Command{
		Use:   "install [arcade-machine-id] [game-center-id]",
		Short: "Install an arcade machine into a game center",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			machineID, err := argOrPrompt(args, 0, "Arcade machine ID")
			if err != nil {
				return err
			}
			gameCenterID, err := argOrPrompt(args, 1, "Game center ID")
			if err != nil {
				return err
			}
			client, err := authedClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Install(ctx, machineID, gameCenterID, autoRenew)
			if err != nil {
				return err
			}
			renderTransition("INSTALLED", out.ArcadeMachine)
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoRenew, "auto-renew", false, "renew the lease automatically")
	return cmd
}

func newUninstallCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall [arcade-machine-id]",
		Short: "Remove an arcade machine from its game center",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machineID, err := argOrPrompt(args, 0, "Arcade machine ID")
			if err != nil {
				return err
			}
			client, err := authedClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Uninstall(ctx, machineID)
			if err != nil {
				return err
			}
			renderTransition("UNINSTALLED", out.ArcadeMachine)
			return nil
		},
	}
}

func newUpdateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "update [arcade-machine-id] [on|off]",
		Short: "Turn lease auto-renewal on or off",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			machineID, err := argOrPrompt(args, 0, "Arcade machine ID")
			if err != nil {
				return err
			}
			var choice string
			if len(args) > 1 {
				choice = strings.ToLower(strings.TrimSpace(args[1]))
			} else {
				choice, err = promptChoice("Auto renew lease", []string{"on", "off"}, "on")
				if err != nil {
					return err
				}
			}
			autoRenew, err := parseSwitch(choice)
			if err != nil {
				return err
			}
			client, err := authedClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Update(ctx, machineID, autoRenew)
			if err != nil {
				return err
			}
			renderTransition("UPDATED", out.ArcadeMachine)
			return nil
		},
	}
}

func newDismantleCmd(apiBase *string) *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "dismantle [arcade-machine-id]",
		Short: "Salvage a fully charged arcade machine into parts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machineID, err := argOrPrompt(args, 0, "Arcade machine ID")
			if err != nil {
				return err
			}
			if strings.TrimSpace(currency) == "" {
				currency, err = promptChoice("Pay fee in", []string{"teras", "akv"}, "teras")
				if err != nil {
					return err
				}
			}
			c := arcade.Currency(strings.ToUpper(strings.TrimSpace(currency)))
			if !c.Valid() {
				return fmt.Errorf("unknown currency %q", currency)
			}
			client, err := authedClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Dismantle(ctx, machineID, c)
			if err != nil {
				return err
			}
			renderDismantle(machineID, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "", "fee currency (teras or akv)")
	return cmd
}

func newWithdrawCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <arcade-machine-id>...",
		Short: "Move arcade machines to your wallet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := authedClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Withdraw(ctx, trimAll(args)...)
			if err != nil {
				return err
			}
			renderBatch("WITHDRAW", out.ArcadeMachines)
			return nil
		},
	}
}

func newDepositCmd(apiBase *string) *cobra.Command {
	var hash string
	cmd := &cobra.Command{
		Use:   "deposit <arcade-machine-id>...",
		Short: "Move wallet-held arcade machines back into Akiverse",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if strings.TrimSpace(hash) == "" {
				hash, err = promptRequired("Transfer hash")
				if err != nil {
					return err
				}
			}
			client, err := authedClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := client.Deposit(ctx, strings.TrimSpace(hash), trimAll(args)...)
			if err != nil {
				return err
			}
			renderBatch("DEPOSIT", out.ArcadeMachines)
			return nil
		},
	}
	cmd.Flags().StringVar(&hash, "hash", "", "on-chain transfer hash")
	return cmd
}

func newPlayableCmd(apiBase *string) *cobra.Command {
	var requestCount, maxPlaying int
	cmd := &cobra.Command{
		Use:   "playable [game]",
		Short: "List arcade machines available to play",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			game, err := argOrPrompt(args, 0, "Game")
			if err != nil {
				return err
			}
			game = strings.ToUpper(game)
			client, err := authedClient(cmd, apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			machines, err := client.Playable(ctx, game, requestCount, maxPlaying)
			if err != nil {
				return err
			}
			renderPlayable(game, machines)
			return nil
		},
	}
	cmd.Flags().IntVarP(&requestCount, "count", "n", 10, "number of machines to request")
	cmd.Flags().IntVar(&maxPlaying, "max-playing", 0, "how many may already be in play today")
	return cmd
}

func argOrPrompt(args []string, idx int, label string) (string, error) {
	if len(args) > idx {
		v := strings.TrimSpace(args[idx])
		if v == "" {
			return "", fmt.Errorf("invalid %s", strings.ToLower(label))
		}
		return v, nil
	}
	return promptRequired(label)
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", v)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
