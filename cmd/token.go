package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/face-attendance/internal/auth"
	"github.com/example/face-attendance/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin bearer token for the /admin endpoints",
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("subject", "admin", "Token subject")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := auth.IssueToken(cfg.Auth.JWTSecret, subject, auth.RoleAdmin, cfg.Auth.JWTAudience, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
