/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shelfwise/apiserver/config"
	"github.com/shelfwise/apiserver/internal/db"
	"github.com/shelfwise/apiserver/internal/services"
	"github.com/shelfwise/apiserver/internal/store"
)

var grantEmail string

// adminCmd groups operator commands that bypass the HTTP API.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Account administration",
}

var adminGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant the admin role to an existing account",
	Long: `Grants the admin role to an existing account. This is how the first
administrator is created. Usage:

	shelfwise admin grant --email root@example.com
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(grantEmail)
		if email == "" {
			return errors.New("--email is required")
		}
		cfg := config.LoadConfig()

		dialect, err := store.ParseDialect(cfg.Database.Driver)
		if err != nil {
			return err
		}
		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		users := services.NewUserService(store.New(dbConn, dialect), services.BcryptHasher{})
		user, err := users.GrantAdmin(cmd.Context(), email)
		if err != nil {
			return err
		}
		log.Info().Int("user_id", user.ID).Str("email", user.Email).Msg("admin role granted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminGrantCmd)

	adminGrantCmd.Flags().StringVar(&grantEmail, "email", "", "email of the account to promote")
}
