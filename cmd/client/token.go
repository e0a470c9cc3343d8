package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create PROJECT LABEL",
	Short: "Issue a new API token for a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		api, err := newSDK()
		if err != nil {
			return err
		}

		resp, err := api.Projects.CreateToken(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		fmt.Printf("token %s (%s) for project %s\n", resp.Info.ID, resp.Info.Label, resp.Info.Project)
		fmt.Println()
		// the signed token is shown exactly once
		fmt.Println(resp.Token)
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list PROJECT",
	Short: "List tokens issued for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		api, err := newSDK()
		if err != nil {
			return err
		}

		resp, err := api.Projects.ListTokens(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tCREATED")
		for _, t := range resp.Tokens {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Label, t.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke ID",
	Short: "Revoke an API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		api, err := newSDK()
		if err != nil {
			return err
		}

		if err := api.Projects.RevokeToken(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("revoked token %s\n", args[0])
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
}
