package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/templui/bullseye/internal/app"
	"github.com/templui/bullseye/internal/logger"
	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/registry"
	"github.com/templui/bullseye/internal/service"
)

func GoalsCmd() *cobra.Command {
	var owner string

	goalsCmd := &cobra.Command{
		Use:   "goals",
		Short: "List goals, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				goals, err := a.GoalService.Goals(cmd.Context(), owner)
				if err != nil {
					return err
				}
				printGoals(a, goals)
				return nil
			})
		},
	}
	goalsCmd.Flags().StringVar(&owner, "owner", "", "only list goals of this owner")

	return goalsCmd
}

func printGoals(a *app.App, goals []*model.Goal) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOWNER\tSTATUS\tAMOUNT\tTYPE\tDEADLINE\tTITLE")
	for _, g := range goals {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			g.ID, g.Owner, g.Status, a.Registry.FormatAmount(g.LockedAmount),
			g.VerificationType, g.Deadline.Format(time.RFC3339), g.Title)
	}
	w.Flush()
}

func ShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <goal-id>",
		Short: "Show a goal with its votes and settlement receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				ctx := cmd.Context()
				goal, err := a.GoalService.Goal(ctx, args[0])
				if err != nil {
					return err
				}
				verification, err := a.GoalService.Verification(ctx, goal.ID)
				if err != nil {
					return err
				}

				out := map[string]any{
					"goal":         goal,
					"verification": verification,
				}
				if goal.Status == model.GoalStatusClaimed {
					receipt, err := a.GoalService.Receipt(goal.ID)
					if err != nil {
						return err
					}
					out["receipt"] = receipt
					if url, err := a.ArchiveService.ReceiptURL(ctx, goal.ID); err == nil && url != "" {
						out["receipt_url"] = url
					}
				}
				return printJSON(out)
			})
		},
	}
}

func ExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Fail every undecided goal whose deadline has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				failed, err := a.GoalService.Expire(cmd.Context())
				if err != nil {
					return err
				}
				if len(failed) == 0 {
					fmt.Println("No expired goals.")
					return nil
				}
				printGoals(a, failed)
				return nil
			})
		},
	}
}

func SettleCmd() *cobra.Command {
	var timeout time.Duration

	settleCmd := &cobra.Command{
		Use:   "settle <goal-id>",
		Short: "Pay out a finalized goal without waiting for its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				return settle(cmd.Context(), a, args[0], timeout)
			})
		},
	}
	settleCmd.Flags().DurationVar(&timeout, "timeout", 0, "transfer timeout (default SETTLEMENT_TIMEOUT)")

	return settleCmd
}

func settle(ctx context.Context, a *app.App, goalID string, timeout time.Duration) error {
	receipt, err := a.GoalService.Settle(ctx, goalID, operator, timeout)
	if errors.Is(err, service.ErrAlreadyClaimed) {
		fmt.Printf("Goal %s is already settled.\n", goalID)
		if receipt, err = a.GoalService.Receipt(goalID); err != nil {
			return err
		}
		return printJSON(receipt)
	}
	if err != nil {
		return err
	}
	return printJSON(receipt)
}

func RegistryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registry",
		Short: "Validate and print the verifier registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			defer logger.Flush()

			reg, err := registry.Load(cfg.RegistryPath)
			if err != nil {
				return err
			}
			policy := reg.Policy()
			fmt.Printf("Registry %s\n", cfg.RegistryPath)
			fmt.Printf("  burn address:     %s\n", reg.BurnAddress())
			fmt.Printf("  treasury address: %s\n", reg.TreasuryAddress())
			fmt.Printf("  lock range:       %s to %s\n", reg.FormatAmount(policy.MinLock), reg.FormatAmount(policy.MaxLock))
			fmt.Printf("  window:           %s\n", policy.VerificationWindow)
			fmt.Printf("  open goals/owner: %d\n", policy.MaxOpenGoalsPerOwner)
			for _, vt := range []model.VerificationType{model.VerificationCommunityPanel, model.VerificationSingleVerifier} {
				panel, ok := reg.Panel(vt)
				if !ok {
					continue
				}
				fmt.Printf("  %s: %d of %v\n", vt, panel.RequiredVotes, panel.Verifiers)
			}
			return nil
		},
	}
}
