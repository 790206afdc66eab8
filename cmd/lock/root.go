package lock

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/livelock/cmd/util"
	"github.com/ValentinKolb/livelock/rpc/client"
	"github.com/ValentinKolb/livelock/rpc/common"
	"github.com/spf13/cobra"
)

var (
	lockClient       *client.LockClient
	acquireReentrant bool
	acquireHold      bool
	releaseAllAfter  time.Duration

	// LockCommands represents the lock command group
	LockCommands = &cobra.Command{
		Use:   "lock",
		Short: "Perform lock operations",
		Long: `Perform lock operations on a livelock server.
Every call uses a random client id unless --client-id is set. Locks belong to the client id,
so pass the same id to release a lock that was acquired by an earlier call.`,
		PersistentPreRunE:  setupLockClient,
		PersistentPostRunE: closeLockClient,
	}

	// acquireCmd represents the acquire command
	acquireCmd = &cobra.Command{
		Use:   "acquire [lock]",
		Short: "Acquire a lock",
		Long:  "Acquire a lock. Without --hold the connection is closed afterwards and the lock is released after the grace period of the server.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}

	// releaseCmd represents the release command
	releaseCmd = &cobra.Command{
		Use:   "release [lock]",
		Short: "Release a lock held by the client",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}

	// releaseAllCmd represents the release-all command
	releaseAllCmd = &cobra.Command{
		Use:   "release-all",
		Short: "Schedule the release of all locks of the client",
		Args:  cobra.NoArgs,
		RunE:  runReleaseAll,
	}

	// unreleaseAllCmd represents the unrelease-all command
	unreleaseAllCmd = &cobra.Command{
		Use:   "unrelease-all",
		Short: "Cancel a pending release of all locks of the client",
		Args:  cobra.NoArgs,
		RunE:  runUnreleaseAll,
	}

	// lockedCmd represents the locked command
	lockedCmd = &cobra.Command{
		Use:   "locked [lock]",
		Short: "Check if a lock is held by any client",
		Args:  cobra.ExactArgs(1),
		RunE:  runLocked,
	}

	// findCmd represents the find command
	findCmd = &cobra.Command{
		Use:   "find [pattern]",
		Short: "List all held locks matching a glob pattern (e.g. 'jobs/*')",
		Args:  cobra.ExactArgs(1),
		RunE:  runFind,
	}

	// addressCmd represents the address command
	addressCmd = &cobra.Command{
		Use:   "address [client-id]",
		Short: "Print the last known address of a client",
		Args:  cobra.ExactArgs(1),
		RunE:  runAddress,
	}

	// signalCmd groups the signal commands
	signalCmd = &cobra.Command{
		Use:   "signal",
		Short: "Manage the signals attached to a lock",
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add subcommands to lock command
	LockCommands.AddCommand(acquireCmd, releaseCmd, releaseAllCmd, unreleaseAllCmd, lockedCmd, findCmd, addressCmd, signalCmd)

	// Add signal subcommands
	for _, op := range []struct {
		use     string
		short   string
		msgType common.MessageType
	}{
		{"add", "Attach a signal to a lock", common.MsgTAddSignal},
		{"has", "Check if a signal is attached to a lock", common.MsgTHasSignal},
		{"remove", "Remove a signal from a lock", common.MsgTRemoveSignal},
	} {
		signalCmd.AddCommand(&cobra.Command{
			Use:   op.use + " [lock] [signal]",
			Short: op.short,
			Args:  cobra.ExactArgs(2),
			RunE:  runSignal(op.msgType),
		})
	}

	// Add common RPC flags to the lock command
	util.SetupRPCClientFlags(LockCommands)

	// Add flags specific to the subcommands
	acquireCmd.Flags().BoolVar(&acquireReentrant, "reentrant", false, util.WrapString("Succeed if the client already holds the lock"))
	acquireCmd.Flags().BoolVar(&acquireHold, "hold", false, util.WrapString("Keep the connection open until interrupted, the lock is released on exit"))
	releaseAllCmd.Flags().DurationVar(&releaseAllAfter, "after", 0, util.WrapString("Release the locks after this duration (0 = grace period of the server)"))
}

// setupLockClient initializes the lock client
func setupLockClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Only errors are logged, the output is for the result
	if err := common.InitLoggers("error"); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the lock client
	lockClient, err = client.NewRPCLockClient(
		*config,
		t,
		s,
	)

	return err
}

// closeLockClient closes the connection of the lock client
func closeLockClient(_ *cobra.Command, _ []string) error {
	if lockClient == nil {
		return nil
	}
	return lockClient.Close()
}

// runAcquire handles the acquire lock command
func runAcquire(_ *cobra.Command, args []string) error {
	lockID := args[0]

	// Attempt to acquire the lock
	acquired, err := lockClient.Acquire(lockID, acquireReentrant)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %v", err)
	}

	fmt.Printf("acquired=%v, clientId=%s\n", acquired, lockClient.ClientID())
	if !acquired || !acquireHold {
		return nil
	}

	// Hold the lock until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	<-sigCh

	released, err := lockClient.Release(lockID)
	if err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}
	fmt.Printf("released=%v\n", released)

	return nil
}

// runRelease handles the release lock command
func runRelease(_ *cobra.Command, args []string) error {
	released, err := lockClient.Release(args[0])
	if err != nil {
		return fmt.Errorf("failed to release lock: %v", err)
	}

	fmt.Printf("released=%v\n", released)
	return nil
}

// runReleaseAll handles the release-all command
func runReleaseAll(_ *cobra.Command, _ []string) error {
	if err := lockClient.ReleaseAll(releaseAllAfter); err != nil {
		return fmt.Errorf("failed to release locks: %v", err)
	}

	fmt.Printf("ok=true\n")
	return nil
}

// runUnreleaseAll handles the unrelease-all command
func runUnreleaseAll(_ *cobra.Command, _ []string) error {
	if err := lockClient.UnreleaseAll(); err != nil {
		return fmt.Errorf("failed to unrelease locks: %v", err)
	}

	fmt.Printf("ok=true\n")
	return nil
}

// runLocked handles the locked command
func runLocked(_ *cobra.Command, args []string) error {
	locked, err := lockClient.Locked(args[0])
	if err != nil {
		return fmt.Errorf("failed to check lock: %v", err)
	}

	fmt.Printf("locked=%v\n", locked)
	return nil
}

// runFind handles the find command
func runFind(_ *cobra.Command, args []string) error {
	items, err := lockClient.Find(args[0])
	if err != nil {
		return fmt.Errorf("failed to find locks: %v", err)
	}

	for _, item := range items {
		fmt.Printf("%s\t%s\n", item.ID, item.AcquiredAt.Format(time.RFC3339Nano))
	}
	return nil
}

// runAddress handles the address command
func runAddress(_ *cobra.Command, args []string) error {
	address, found, err := lockClient.ClientAddress(args[0])
	if err != nil {
		return fmt.Errorf("failed to get address: %v", err)
	}

	fmt.Printf("found=%v, address=%s\n", found, address)
	return nil
}

// runSignal returns the handler of a signal command
func runSignal(msgType common.MessageType) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		var ok, found bool
		var err error

		switch msgType {
		case common.MsgTAddSignal:
			ok, found, err = lockClient.AddSignal(args[0], args[1])
		case common.MsgTHasSignal:
			ok, found, err = lockClient.HasSignal(args[0], args[1])
		default:
			ok, found, err = lockClient.RemoveSignal(args[0], args[1])
		}
		if err != nil {
			return fmt.Errorf("failed to %s: %v", msgType, err)
		}

		fmt.Printf("ok=%v, found=%v\n", ok, found)
		return nil
	}
}
