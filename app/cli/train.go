package main

import (
	"fmt"
	"os"
	"path/filepath"

	"clinicalGym/business/environment"
	"clinicalGym/business/policy"
	"clinicalGym/business/training"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

type trainOptions struct {
	env         string
	policy      string
	episodes    int
	maxSteps    int
	temperature float64
	plotPath    string
	quiet       bool
}

func TrainCommand() *cobra.Command {
	var o trainOptions

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a policy against one environment locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.env, "environment", "ed_triage", "Environment to train on")
	cmd.Flags().StringVar(&o.policy, "policy", policy.KindSoftmax, "Policy: random, softmax or slm")
	cmd.Flags().IntVar(&o.episodes, "episodes", 50, "Number of episodes")
	cmd.Flags().IntVar(&o.maxSteps, "max-steps", 0, "Override the environment horizon")
	cmd.Flags().Float64Var(&o.temperature, "temperature", 0.5, "Softmax temperature")
	cmd.Flags().StringVar(&o.plotPath, "plot", "", "Write a reward curve PNG to this path")
	cmd.Flags().BoolVar(&o.quiet, "quiet", false, "Only print the summary")
	return cmd
}

func runTrain(cmd *cobra.Command, o trainOptions) error {
	if o.episodes < 1 {
		return fmt.Errorf("episodes must be at least 1")
	}
	s := seedPtr()
	env, err := newRegistry().Make(o.env, environment.Config{Seed: s, MaxSteps: o.maxSteps})
	if err != nil {
		return err
	}
	opts, err := policyOptions(cmd, o.temperature)
	if err != nil {
		return err
	}
	opts.Seed = s
	p, err := policy.New(o.policy, env.ActionLabels(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rewards := make([]float64, 0, o.episodes)
	var last training.EpisodeResult
	for ep := 0; ep < o.episodes; ep++ {
		var epSeed *int64
		if s != nil {
			v := *s + int64(ep)
			epSeed = &v
		}
		res, err := training.RunEpisode(cmd.Context(), env, p, epSeed, 0)
		if err != nil {
			return fmt.Errorf("episode %d: %w", ep, err)
		}
		rewards = append(rewards, res.Reward)
		last = res
		if !o.quiet {
			fmt.Fprintf(out, "episode %4d  steps %3d  reward %8.3f\n", ep, res.Steps, res.Reward)
		}
	}

	mean, std, lo, hi := training.RewardStats(rewards)
	fmt.Fprintf(out, "%s/%s: %d episodes, mean %.3f, std %.3f, min %.3f, max %.3f\n",
		o.env, p.Name(), len(rewards), mean, std, lo, hi)
	fmt.Fprintf(out, "final kpis: risk %.3f, compliance %.3f, satisfaction %.3f\n",
		last.KPIs.RiskScore, last.KPIs.ComplianceScore, last.KPIs.PatientSatisfaction)

	if o.plotPath != "" {
		if err := plotRewards(o.plotPath, o.env+" / "+p.Name(), rewards); err != nil {
			return err
		}
		fmt.Fprintf(out, "reward curve written to %s\n", o.plotPath)
	}
	return nil
}

func plotRewards(path, title string, rewards []float64) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("create plot dir: %w", err)
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = "Reward"

	points := make(plotter.XYs, len(rewards))
	for i, r := range rewards {
		points[i] = plotter.XY{X: float64(i), Y: r}
	}
	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("build plot: %w", err)
	}
	p.Add(line)
	p.Add(plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
