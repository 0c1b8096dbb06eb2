package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mr-Dark-debug/freightview/internal/api"
	"github.com/Mr-Dark-debug/freightview/internal/promotions"
	"github.com/Mr-Dark-debug/freightview/pkg/timeutil"
)

func newPromoteCommand(opt *options) *cobra.Command {
	var projectFlag, stage, freight, name string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote freight into a stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := opt.project(projectFlag)
			if err != nil {
				return err
			}
			p, err := opt.client().CreatePromotion(cmd.Context(), project, stage, freight, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(opt.out, "promotion/%s created\n", p.Metadata.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectFlag, "project", "p", "", "project (default ui.project)")
	cmd.Flags().StringVar(&stage, "stage", "", "target stage")
	cmd.Flags().StringVar(&freight, "freight", "", "freight ID to promote")
	cmd.Flags().StringVar(&name, "name", "", "promotion name (generated when empty)")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("freight")
	return cmd
}

func newPromotionCommand(opt *options) *cobra.Command {
	var projectFlag string
	cmd := &cobra.Command{
		Use:     "promotion",
		Aliases: []string{"promotions"},
		Short:   "List, update and delete promotions",
	}
	cmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "project (default ui.project)")
	cmd.AddCommand(
		newPromotionListCommand(opt, &projectFlag),
		newPromotionPhaseCommand(opt, &projectFlag),
		newPromotionDeleteCommand(opt, &projectFlag),
	)
	return cmd
}

func newPromotionListCommand(opt *options, projectFlag *string) *cobra.Command {
	var stage, output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List promotions of a stage, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := opt.project(*projectFlag)
			if err != nil {
				return err
			}
			list, err := opt.client().ListPromotions(cmd.Context(), project, stage)
			if err != nil {
				return err
			}
			list = promotions.SortedByCreation(list)
			if output == "json" {
				return opt.printJSON(list)
			}

			rows := make([][]string, 0, len(list))
			for _, p := range list {
				rows = append(rows, []string{
					timeutil.FormatPromotionDate(p.Metadata.CreationTimestamp),
					p.Metadata.Name,
					promotions.ShortFreight(p.Spec.Freight),
					promotions.StatusOf(p).Title,
				})
			}
			fmt.Fprintln(opt.out, renderTable([]string{"DATE", "NAME", "FREIGHT", "PHASE"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "stage")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: json")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func newPromotionPhaseCommand(opt *options, projectFlag *string) *cobra.Command {
	var errMsg string
	cmd := &cobra.Command{
		Use:   "phase NAME PHASE",
		Short: "Set the phase of a promotion",
		Long:  "Set the phase of a promotion. PHASE is one of " + strings.Join(phaseNames(), ", ") + ".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := opt.project(*projectFlag)
			if err != nil {
				return err
			}
			phase, err := parsePhase(args[1])
			if err != nil {
				return err
			}
			p, err := opt.client().UpdatePromotionStatus(cmd.Context(), project, args[0], api.PromotionStatus{
				Phase: phase,
				Error: errMsg,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(opt.out, "promotion/%s %s\n", p.Metadata.Name, p.Status.Phase)
			return nil
		},
	}
	cmd.Flags().StringVar(&errMsg, "error", "", "error message for an Errored promotion")
	return cmd
}

func newPromotionDeleteCommand(opt *options, projectFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a promotion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := opt.project(*projectFlag)
			if err != nil {
				return err
			}
			p, err := opt.client().DeletePromotion(cmd.Context(), project, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(opt.out, "promotion/%s deleted\n", p.Metadata.Name)
			return nil
		},
	}
}

var knownPhases = []api.PromotionPhase{
	api.PhasePending,
	api.PhaseRunning,
	api.PhaseSucceeded,
	api.PhaseErrored,
}

func phaseNames() []string {
	out := make([]string, len(knownPhases))
	for i, p := range knownPhases {
		out[i] = string(p)
	}
	return out
}

// parsePhase matches a phase name case-insensitively.
func parsePhase(s string) (api.PromotionPhase, error) {
	for _, p := range knownPhases {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q, want one of %s", s, strings.Join(phaseNames(), ", "))
}
