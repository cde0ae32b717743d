package main

import (
	"fmt"
	"time"

	"clinicalGym/pkg/utils"

	"github.com/spf13/cobra"
)

func TokenCommand() *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the training API (reads JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := utils.GenerateJWTWithTTL(user, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "operator", "User ID to embed")
	cmd.Flags().StringVar(&role, "role", "user", "Role to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
