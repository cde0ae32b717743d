package main

import (
	"encoding/json"
	"strings"

	"clinicalGym/business/orchestrator"
	"clinicalGym/business/training"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
)

func OrchestrateCommand() *cobra.Command {
	var (
		envs        string
		policyKind  string
		episodes    int
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Run several environments concurrently and print the combined result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := policyOptions(cmd, 0)
			if err != nil {
				return err
			}
			o := orchestrator.NewOrchestrator(newRegistry(), training.DefaultPolicyFactory(opts), validator.New(), parallelism)

			req := orchestrator.Request{Seed: seedPtr()}
			for _, name := range strings.Split(envs, ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				req.Workflows = append(req.Workflows, orchestrator.WorkflowRequest{
					Environment: name,
					Policy:      policyKind,
					Episodes:    episodes,
				})
			}

			res, err := o.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&envs, "environments", strings.Join(newRegistry().Names(), ","), "Comma separated environment names")
	cmd.Flags().StringVar(&policyKind, "policy", "random", "Policy used for every environment")
	cmd.Flags().IntVar(&episodes, "episodes", 1, "Episodes per environment")
	cmd.Flags().IntVar(&parallelism, "parallelism", 4, "Environments run at once")
	return cmd
}
