package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/icon-project/minthub/cmd/cli"
)

var (
	version = "unknown"
	build   = "unknown"
)

func main() {
	rootCmd, rootVc := cli.NewCommand(nil, nil, "minthub", "NFT drop execution node")
	rootCmd.SilenceUsage = true

	rootPFlags := rootCmd.PersistentFlags()
	rootPFlags.StringP("uri", "u", "http://localhost:9080", "URI of the node REST server")
	cli.BindPFlags(rootVc, rootPFlags)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print minthub version",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("minthub version %s %s\n", version, build)
		},
	})

	cli.NewServerCmd(rootCmd, rootVc, version, build)
	cli.NewDropCmd(rootCmd, rootVc)
	cli.NewMintCmd(rootCmd, rootVc)
	cli.NewWalletCmd(rootCmd, rootVc)
	cli.NewSystemCmd(rootCmd, rootVc)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
