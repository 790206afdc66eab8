package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/livelock/cmd/lock"
	"github.com/ValentinKolb/livelock/cmd/serve"
	"github.com/ValentinKolb/livelock/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "livelock",
		Short: "lock server with disconnect grace periods",
		Long: fmt.Sprintf(`livelock (v%s)

A lock server written in Go. Locks belong to clients and survive
short disconnects: when a client goes away, its locks are released
after a grace period unless it reconnects in time.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of livelock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("livelock v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary), must match between server and client"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
