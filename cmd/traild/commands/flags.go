package commands

import (
	"github.com/spf13/cobra"

	"github.com/concave-dev/trail/cmd/traild/config"
)

// SetupFlags registers every daemon flag on cmd. Flags write straight into
// config.Global; config.Load then layers the environment and config file
// underneath anything set on the command line.
func SetupFlags(cmd *cobra.Command) {
	g := &config.Global
	f := cmd.Flags()

	f.StringVar(&g.ConfigFile, "config", "",
		"Config file (YAML, JSON or TOML); keys mirror the flag names")
	f.StringVar(&g.EnvFile, "env-file", config.DefaultEnvFile,
		"Env file loaded before reading "+config.EnvPrefix+"_ variables (ignored when the default is missing)")

	// Node and network
	f.StringVar(&g.APIAddr, "api", config.DefaultAPI,
		"Address and port for the HTTP API server (e.g., "+config.DefaultAPI+")\n"+
			"If the default port is busy the next free port is used")
	f.StringVar(&g.GossipAddr, "gossip", config.DefaultGossip,
		"Address and port for gossip peer discovery (e.g., "+config.DefaultGossip+")")
	f.BoolVar(&g.NoGossip, "no-gossip", false,
		"Run without gossip peer discovery")
	f.StringSliceVar(&g.JoinAddrs, "join", nil,
		"Comma-separated list of gossip addresses to join (e.g., node1:4210,node2:4210)")
	f.BoolVar(&g.StrictJoin, "strict-join", false,
		"Exit if joining the gossip cluster fails (default: continue alone)")
	f.StringVar(&g.NodeName, "name", "",
		"Node name (defaults to a generated name like 'amber-ledger')")
	f.StringVar(&g.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level: DEBUG, INFO, WARN, ERROR")
	f.StringVar(&g.LogFile, "log-file", "",
		"Write logs to this file instead of stderr")
	f.IntVar(&g.MaxPorts, "max-ports", config.DefaultMaxPorts,
		"Ports tried when the default API port is busy")

	// Member identity
	f.StringVar(&g.MemberAddress, "member-address", "",
		"Account address of the member this node acts for, advertised to peers")
	f.StringVar(&g.App2AppDestination, "app2app-destination", "",
		"App2app messaging destination advertised to peers")
	f.StringVar(&g.DocExchangeDestination, "docexchange-destination", "",
		"Document exchange destination advertised to peers")

	// Persistence
	f.StringVar(&g.Database.Backend, "db-backend", g.Database.Backend,
		"Document store backend: memdb, goleveldb or postgres")
	f.StringVar(&g.Database.Dir, "db-dir", g.Database.Dir,
		"Directory of the goleveldb store")
	f.StringVar(&g.Database.DSN, "db-dsn", "",
		"PostgreSQL connection string (prefer "+config.EnvPrefix+"_DATABASE_DSN)")

	// Dispatch
	f.StringVar(&g.Dispatch.IPFSURL, "ipfs-url", g.Dispatch.IPFSURL,
		"IPFS HTTP API endpoint")
	f.StringVar(&g.Dispatch.GatewayURL, "gateway-url", g.Dispatch.GatewayURL,
		"Ledger API gateway endpoint")
	f.StringVar(&g.Dispatch.GatewayUsername, "gateway-username", "",
		"Basic auth user for the API gateway")
	f.StringVar(&g.Dispatch.GatewayPassword, "gateway-password", "",
		"Basic auth password for the API gateway (prefer "+config.EnvPrefix+"_DISPATCH_GATEWAY_PASSWORD)")
	f.DurationVar(&g.Dispatch.RequestTimeout, "request-timeout", g.Dispatch.RequestTimeout,
		"Timeout for each IPFS and gateway request")

	// Client events
	f.StringSliceVar(&g.Notify.Brokers, "kafka-brokers", nil,
		"Kafka brokers for client events (events are dropped when empty)")
	f.StringVar(&g.Notify.Topic, "kafka-topic", g.Notify.Topic,
		"Kafka topic for client events")
	f.IntVar(&g.Notify.BufferSize, "event-buffer-size", g.Notify.BufferSize,
		"Events queued for publishing before new ones are dropped")
	f.DurationVar(&g.Notify.PublishTimeout, "publish-timeout", g.Notify.PublishTimeout,
		"Timeout for publishing one event")

	// Batching
	f.IntVar(&g.Batch.BatchMaxRecords, "batch-max-records", g.Batch.BatchMaxRecords,
		"Close a batch once it holds this many records")
	f.IntVar(&g.Batch.BatchTimeoutArrivalMs, "batch-timeout-arrival", g.Batch.BatchTimeoutArrivalMs,
		"Close a batch after this many ms without a new record")
	f.IntVar(&g.Batch.BatchTimeoutOverallMs, "batch-timeout-overall", g.Batch.BatchTimeoutOverallMs,
		"Close a batch this many ms after it was created")
	f.IntVar(&g.Batch.AddTimeoutMs, "add-timeout", g.Batch.AddTimeoutMs,
		"Max ms a request waits for its record to be admitted to a batch")
	f.IntVar(&g.Batch.RetryInitialDelayMs, "retry-initial-delay", g.Batch.RetryInitialDelayMs,
		"First dispatch retry delay in ms, doubled per attempt")
	f.IntVar(&g.Batch.RetryMaxDelayMs, "retry-max-delay", g.Batch.RetryMaxDelayMs,
		"Dispatch retry delay ceiling in ms (0 for uncapped)")
	f.IntVar(&g.Batch.RetryAlertAttempts, "retry-alert-attempts", g.Batch.RetryAlertAttempts,
		"Log dispatch failures at ERROR after this many attempts (0 to disable)")
}
