package cli

import (
	"fmt"
	"os"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/icon-project/minthub/module"
)

const (
	TableMaxColWidth    = 80
	TableCellDisplayNil = "-"
)

func cell(v string) string {
	if v == "" {
		return TableCellDisplayNil
	}
	return v
}

// AdminPersistentPreRunE resolves the admin client from the uri flag
// before any admin subcommand runs.
func AdminPersistentPreRunE(vc *viper.Viper, client **AdminClient) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := ValidateFlagsWithViper(vc, cmd.Flags()); err != nil {
			return err
		}
		*client = NewAdminClient(vc.GetString("uri"))
		return nil
	}
}

func NewDropCmd(parentCmd *cobra.Command, parentVc *viper.Viper) (*cobra.Command, *viper.Viper) {
	var client *AdminClient
	rootCmd, vc := NewCommand(parentCmd, parentVc, "drop", "Drop management")
	rootCmd.PersistentPreRunE = AdminPersistentPreRunE(vc, &client)

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List drops",
		RunE: func(cmd *cobra.Command, args []string) error {
			var drops []*module.Drop
			if err := client.Get("/api/v1/drops", &drops); err != nil {
				return err
			}
			table := uitable.New()
			table.MaxColWidth = TableMaxColWidth
			table.AddRow("ID", "Project", "Status", "Minted", "Supply", "Paused")
			for _, d := range drops {
				supply := "unlimited"
				if d.Supply > 0 {
					supply = fmt.Sprint(d.Supply)
				}
				table.AddRow(d.ID, d.Project, cell(string(d.Status)),
					d.Minted, supply, d.Paused)
			}
			fmt.Println(table)
			return nil
		},
	}
	getCmd := &cobra.Command{
		Use:   "get DROP_ID",
		Short: "Inspect a drop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var drop module.Drop
			if err := client.Get("/api/v1/drops/"+args[0], &drop); err != nil {
				return err
			}
			return JsonPrettyPrintln(os.Stdout, &drop)
		},
	}
	pauseCmd := &cobra.Command{
		Use:   "pause DROP_ID",
		Short: "Pause minting from a drop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var drop module.Drop
			if err := client.Post("/api/v1/drops/"+args[0]+"/pause", nil, &drop); err != nil {
				return err
			}
			return JsonPrettyPrintln(os.Stdout, &drop)
		},
	}
	resumeCmd := &cobra.Command{
		Use:   "resume DROP_ID",
		Short: "Resume minting from a drop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var drop module.Drop
			if err := client.Post("/api/v1/drops/"+args[0]+"/resume", nil, &drop); err != nil {
				return err
			}
			return JsonPrettyPrintln(os.Stdout, &drop)
		},
	}
	rootCmd.AddCommand(lsCmd, getCmd, pauseCmd, resumeCmd)
	return rootCmd, vc
}

func NewMintCmd(parentCmd *cobra.Command, parentVc *viper.Viper) (*cobra.Command, *viper.Viper) {
	var client *AdminClient
	rootCmd, vc := NewCommand(parentCmd, parentVc, "mint", "Mint management")
	rootCmd.PersistentPreRunE = AdminPersistentPreRunE(vc, &client)

	lsCmd := &cobra.Command{
		Use:   "ls DROP_ID",
		Short: "List mints of a drop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mints []*module.Mint
			if err := client.Get("/api/v1/drops/"+args[0]+"/mints", &mints); err != nil {
				return err
			}
			table := uitable.New()
			table.MaxColWidth = TableMaxColWidth
			table.AddRow("ID", "Owner", "Address", "Status", "Signature")
			for _, m := range mints {
				table.AddRow(m.ID, cell(m.Owner), cell(m.Address),
					cell(string(m.Status)), cell(m.Signature))
			}
			fmt.Println(table)
			return nil
		},
	}
	getCmd := &cobra.Command{
		Use:   "get MINT_ID",
		Short: "Inspect a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mint module.Mint
			if err := client.Get("/api/v1/mints/"+args[0], &mint); err != nil {
				return err
			}
			return JsonPrettyPrintln(os.Stdout, &mint)
		},
	}
	rootCmd.AddCommand(lsCmd, getCmd)
	return rootCmd, vc
}

func NewWalletCmd(parentCmd *cobra.Command, parentVc *viper.Viper) (*cobra.Command, *viper.Viper) {
	var client *AdminClient
	rootCmd, vc := NewCommand(parentCmd, parentVc, "wallet", "Project wallet management")
	rootCmd.PersistentPreRunE = AdminPersistentPreRunE(vc, &client)

	setCmd := &cobra.Command{
		Use:   "set PROJECT BLOCKCHAIN ADDRESS",
		Short: "Register the treasury wallet of a project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{
				"project":    args[0],
				"blockchain": args[1],
				"address":    args[2],
			}
			var w module.ProjectWallet
			if err := client.Post("/api/v1/wallets", body, &w); err != nil {
				return err
			}
			return JsonPrettyPrintln(os.Stdout, &w)
		},
	}
	rootCmd.AddCommand(setCmd)
	return rootCmd, vc
}

func NewSystemCmd(parentCmd *cobra.Command, parentVc *viper.Viper) (*cobra.Command, *viper.Viper) {
	var client *AdminClient
	rootCmd, vc := NewCommand(parentCmd, parentVc, "system", "Display node information")
	rootCmd.PersistentPreRunE = AdminPersistentPreRunE(vc, &client)
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		var v map[string]interface{}
		if err := client.Get("/admin/system", &v); err != nil {
			return err
		}
		return JsonPrettyPrintln(os.Stdout, v)
	}
	return rootCmd, vc
}
