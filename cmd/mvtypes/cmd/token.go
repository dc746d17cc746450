package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/jengzang/mvtypes-go/internal/middleware"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token SUBJECT",
	Short: "Issue a bearer token for the HTTP API",
	Long:  `Sign an HS256 token for SUBJECT with the configured jwt_secret (MVTYPES_JWT_SECRET).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("jwt_secret is not configured")
		}

		now := time.Now()
		claims := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now)}
		if tokenTTL > 0 {
			claims.ExpiresAt = jwt.NewNumericDate(now.Add(tokenTTL))
		}

		token, err := middleware.IssueToken(cfg.JWTSecret, args[0], claims)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
}
