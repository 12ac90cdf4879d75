package cli

import (
	stdlog "log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/node"
)

// NewServerCmd makes the server command group: `save` writes the merged
// configuration to a file, `start` runs the node.
func NewServerCmd(parentCmd *cobra.Command, parentVc *viper.Viper, version, build string) (*cobra.Command, *viper.Viper) {
	rootCmd, vc := NewCommand(parentCmd, parentVc, "server", "Server management")

	cfg := &node.Config{}
	cfg.BuildVersion = version
	cfg.BuildTags = build

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg.FilePath = vc.GetString("config")
		return MergeWithViper(vc, cfg)
	}
	rootPFlags := rootCmd.PersistentFlags()
	rootPFlags.String("rpc_addr", node.DefaultRPCAddr, "Listen ip-port of the REST server")
	rootPFlags.String("node_dir", "",
		"Node data directory(default:"+node.DefaultBaseDir+")")
	rootPFlags.String("db_type", node.DefaultDBType, "Database backend(goleveldb,mapdb)")
	rootPFlags.String("log_level", "debug", "Global log level (trace,debug,info,warn,error,fatal,panic)")
	rootPFlags.String("console_level", "trace", "Console log level (trace,debug,info,warn,error,fatal,panic)")
	rootPFlags.StringP("config", "c", "", "Parsing configuration file")
	BindPFlags(vc, rootCmd.PersistentFlags())

	saveCmd := &cobra.Command{
		Use:   "save [file]",
		Short: "Save configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.FillEmpty()
			if err := cfg.Save(args[0]); err != nil {
				return err
			}
			stdlog.Println("Save configuration to", args[0])
			return nil
		},
	}
	rootCmd.AddCommand(saveCmd)

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.FillEmpty()
			logger, err := cfg.BuildLogger()
			if err != nil {
				return err
			}
			log.SetGlobalLogger(logger)
			stdlog.SetOutput(logger.Writer())

			modLevels, _ := cmd.Flags().GetStringToString("mod_level")
			for mod, lvStr := range modLevels {
				if lv, err := log.ParseLevel(lvStr); err != nil {
					return errors.Errorf("invalid mod_level mod=%s level=%s", mod, lvStr)
				} else {
					logger.SetModuleLevel(mod, lv)
				}
			}

			log.Printf("Version : %s", version)
			log.Printf("Build   : %s", build)

			n, err := node.NewNode(cfg, logger)
			if err != nil {
				return err
			}
			return n.Run()
		},
	}
	rootCmd.AddCommand(startCmd)
	startFlags := startCmd.Flags()
	startFlags.StringToString("mod_level", nil, "Set console log level for specific module ('mod'='level',...)")
	startFlags.MarkHidden("mod_level")
	BindPFlags(vc, startFlags)

	return rootCmd, vc
}

func MergeWithViper(vc *viper.Viper, cfg *node.Config) error {
	if cfg.FilePath != "" {
		f, err := os.Open(cfg.FilePath)
		if err != nil {
			return errors.Errorf("fail to open config file=%s err=%+v", cfg.FilePath, err)
		}
		defer f.Close()
		vc.SetConfigType("json")
		if err = vc.ReadConfig(f); err != nil {
			return errors.Errorf("fail to read config file=%s err=%+v", cfg.FilePath, err)
		}
	}
	if err := vc.Unmarshal(cfg, ViperDecodeOptJson); err != nil {
		return errors.Errorf("fail to unmarshal config from env err=%+v", err)
	}
	return nil
}
