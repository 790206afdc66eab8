package serve

import (
	"fmt"
	"time"

	cmdUtil "github.com/ValentinKolb/livelock/cmd/util"
	"github.com/ValentinKolb/livelock/lib/lockmgr"
	"github.com/ValentinKolb/livelock/rpc/common"
	"github.com/ValentinKolb/livelock/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the livelock server",
		Long:    `Start the livelock server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is LIVELOCK_<flag> (e.g. LIVELOCK_GRACE_PERIOD=30s)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:5252", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:5252 for tcp, /tmp/livelock.sock for unix)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Write timeout of a single response in seconds"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 8, cmdUtil.WrapString("Maximal number of requests of a single connection that are processed concurrently"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "admin-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The address of the HTTP admin endpoint with /metrics, /stats and /healthz (empty = disabled)"))

	key = "dump-file"
	ServeCmd.PersistentFlags().String(key, lockmgr.DefaultDumpFile, cmdUtil.WrapString("The file the lock state is dumped to"))

	key = "grace-period"
	ServeCmd.PersistentFlags().Duration(key, lockmgr.DefaultGracePeriod, cmdUtil.WrapString("How long the locks of a disconnected client are kept for a reconnect"))

	key = "load-dump-on-start"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Restore the locks from the dump file on start, restored locks are released after the grace period unless their client reconnects"))

	key = "dump-on-exit"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Dump the locks to the dump file on shutdown"))

	key = "clear-dump-on-exit"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Remove the dump file on shutdown (only if dump-on-exit is disabled)"))

	key = "dump-interval"
	ServeCmd.PersistentFlags().Duration(key, 0, cmdUtil.WrapString("Interval of periodic dumps (0 = disabled)"))

	key = "maintenance-interval"
	ServeCmd.PersistentFlags().Duration(key, time.Second, cmdUtil.WrapString("Interval in which expired locks are purged (0 = disabled, expired locks are then only purged when they are accessed)"))

	key = "maintenance-budget"
	ServeCmd.PersistentFlags().Duration(key, 10*time.Millisecond, cmdUtil.WrapString("Time budget of a single maintenance run (0 = unlimited)"))

	cmdUtil.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	socketConf, tcpConf := cmdUtil.GetSocketConf()

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		SocketConf:     socketConf,
		TCPConf:        tcpConf,
	}
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.AdminEndpoint = viper.GetString("admin-endpoint")
	serveCmdConfig.Storage = common.StorageConfig{
		DumpFile:            viper.GetString("dump-file"),
		GracePeriod:         viper.GetDuration("grace-period"),
		LoadDumpOnStart:     viper.GetBool("load-dump-on-start"),
		DumpOnExit:          viper.GetBool("dump-on-exit"),
		ClearDumpOnExit:     viper.GetBool("clear-dump-on-exit"),
		DumpInterval:        viper.GetDuration("dump-interval"),
		MaintenanceInterval: viper.GetDuration("maintenance-interval"),
		MaintenanceBudget:   viper.GetDuration("maintenance-budget"),
	}

	if serveCmdConfig.Transport.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if serveCmdConfig.Storage.GracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive, got %s", serveCmdConfig.Storage.GracePeriod)
	}

	// Init logger
	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the livelock server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}
