package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Shared transport configuration
// --------------------------------------------------------------------------

// SocketConf holds socket settings that apply to all stream transports
type SocketConf struct {
	WriteBufferSize int // in bytes, 0 = os default
	ReadBufferSize  int // in bytes, 0 = os default
}

// TCPConf holds settings that only apply to tcp connections
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int // 0 = disabled
	TCPLingerSec    int // < 0 = os default
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig configures the listening side of a transport
type ServerTransportConfig struct {
	Endpoint       string // tcp address or path of the unix socket
	WorkersPerConn int    // max concurrent requests per connection
	SocketConf
	TCPConf
}

// StorageConfig configures the lock storage and its background jobs
type StorageConfig struct {
	DumpFile            string
	GracePeriod         time.Duration // default timeout of release-all when a client disconnects
	LoadDumpOnStart     bool
	DumpOnExit          bool
	ClearDumpOnExit     bool          // only used if DumpOnExit is false
	DumpInterval        time.Duration // 0 = no periodic dumps
	MaintenanceInterval time.Duration // 0 = no periodic maintenance
	MaintenanceBudget   time.Duration // time budget of a single maintenance run
}

// ServerConfig holds all configuration parameters of the livelock server.
type ServerConfig struct {
	// Transport settings
	Transport ServerTransportConfig

	// Write timeout of a single response
	TimeoutSecond int64

	// Lock storage settings
	Storage StorageConfig

	// HTTP admin endpoint (metrics, stats), empty = disabled
	AdminEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Admin Endpoint", valueOr(c.AdminEndpoint, "disabled"))

	// Lock storage
	addSection("Lock Storage")
	addField("Dump File", c.Storage.DumpFile)
	addField("Grace Period", c.Storage.GracePeriod.String())
	addField("Load Dump On Start", strconv.FormatBool(c.Storage.LoadDumpOnStart))
	addField("Dump On Exit", strconv.FormatBool(c.Storage.DumpOnExit))
	addField("Clear Dump On Exit", strconv.FormatBool(c.Storage.ClearDumpOnExit))
	addField("Dump Interval", durationOr(c.Storage.DumpInterval, "disabled"))
	addField("Maintenance Interval", durationOr(c.Storage.MaintenanceInterval, "disabled"))
	addField("Maintenance Budget", durationOr(c.Storage.MaintenanceBudget, "unlimited"))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig configures the connecting side of a transport
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

// ClientConfig holds all configuration parameters of a livelock client
type ClientConfig struct {
	ClientID      string // identity of the client, all connections share it
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Client ID", c.ClientID)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func durationOr(d time.Duration, fallback string) string {
	if d <= 0 {
		return fallback
	}
	return d.String()
}
