package main

import (
	"fmt"
	"os"

	"github.com/kjk/insertrow/config"
	"github.com/kjk/insertrow/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v   *viper.Viper
	cfg *config.Config

	flgConfigPath string
)

// loadConfig resolves config for commands that need a store
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v, flgConfigPath)
	if err != nil {
		return err
	}
	cfg = c
	log.Verbose = cfg.Verbose
	log.Init(&log.Config{
		Dir: cfg.LogDir,
	})
	return nil
}

func setupFlags(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	flags.StringVar(&flgConfigPath, "config", "", "path of yaml config file")
	flags.String("store", "", "path of the store file")
	flags.Bool("verbose", false, "verbose logging")
	flags.Int("max-record-len", config.DefaultMaxRecordLen, "max size of escaped record content")
	flags.Int64("max-store-size", config.DefaultMaxStoreSize, "inserts are rejected once the store is this big")
	flags.String("log-dir", "", "directory for log files, no log files if empty")
	if err := v.BindPFlag("store_path", flags.Lookup("store")); err != nil {
		return err
	}
	if err := v.BindPFlag("verbose", flags.Lookup("verbose")); err != nil {
		return err
	}
	if err := v.BindPFlag("max_record_len", flags.Lookup("max-record-len")); err != nil {
		return err
	}
	if err := v.BindPFlag("max_store_size", flags.Lookup("max-store-size")); err != nil {
		return err
	}
	return v.BindPFlag("log_dir", flags.Lookup("log-dir"))
}

func newRootCmd() (*cobra.Command, error) {
	v = viper.New()
	rootCmd := &cobra.Command{
		Use:           "insertrow",
		Short:         "append request bodies as records to a flat file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if err := setupFlags(rootCmd); err != nil {
		return nil, err
	}
	serveCmd, err := newServeCmd()
	if err != nil {
		return nil, err
	}
	rootCmd.AddCommand(
		serveCmd,
		newCgiCmd(),
		newInsertCmd(),
		newSubmitCmd(),
		newDumpCmd(),
		newStatsCmd(),
		newRepairCmd(),
		newArchiveCmd(),
		newPullCmd(),
		newConfigCmd(),
	)
	return rootCmd, nil
}

func main() {
	rootCmd, err := newRootCmd()
	if err == nil {
		err = rootCmd.Execute()
	}
	log.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
