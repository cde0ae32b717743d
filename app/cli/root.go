package main

import (
	"os"

	"clinicalGym/business/policy"
	"clinicalGym/business/workflows"
	"clinicalGym/pkg/config"
	"clinicalGym/pkg/logger"
	"clinicalGym/pkg/providers"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	seed     int64
	useSeed  bool
)

func GetRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clinicalgym",
		Short:         "Run and inspect healthcare workflow environments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			logger.Init(logLevel)
			useSeed = cmd.Flags().Changed("seed")
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log", "test", "Logging profile: development, production or test")
	cmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Seed for reproducible runs")

	cmd.AddCommand(EnvsCommand())
	cmd.AddCommand(TrainCommand())
	cmd.AddCommand(OrchestrateCommand())
	cmd.AddCommand(TokenCommand())
	return cmd
}

func seedPtr() *int64 {
	if !useSeed {
		return nil
	}
	s := seed
	return &s
}

// policyOptions reads the provider settings from the environment so the slm
// policy can be used from the command line.
func policyOptions(cmd *cobra.Command, temperature float64) (policy.Options, error) {
	pc := config.PolicyConfig{
		Provider:      os.Getenv("POLICY_PROVIDER"),
		Model:         os.Getenv("POLICY_MODEL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
	}
	opts := policy.Options{Temperature: temperature, Model: pc.Model}
	client, err := providers.FromConfig(cmd.Context(), pc)
	if err != nil {
		return opts, err
	}
	if client != nil {
		opts.Client = client
	}
	return opts, nil
}

var newRegistry = workflows.NewRegistry
