// Package daemon wires the trail components together and runs them until
// the process is signalled.
//
// Startup order follows the dependencies between components:
//
//  1. Client event publisher (Kafka, or a no-op without brokers)
//  2. Document store, which reports every write to the publisher
//  3. IPFS and gateway clients and the batch dispatcher built on them
//  4. Batch manager, which replays batches left pending by a previous run
//  5. Registry service
//  6. HTTP API on a pre-bound listener
//  7. Gossip peer discovery, advertising the API port that was bound
//
// Shutdown runs in reverse so in-flight API requests finish before the
// batch processors and the store go away.
package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/concave-dev/trail/cmd/traild/config"
	"github.com/concave-dev/trail/internal/api"
	"github.com/concave-dev/trail/internal/batch"
	"github.com/concave-dev/trail/internal/database"
	"github.com/concave-dev/trail/internal/dispatch"
	"github.com/concave-dev/trail/internal/gossip"
	"github.com/concave-dev/trail/internal/logging"
	"github.com/concave-dev/trail/internal/names"
	"github.com/concave-dev/trail/internal/netutil"
	"github.com/concave-dev/trail/internal/notify"
	"github.com/concave-dev/trail/internal/registry"
	"github.com/concave-dev/trail/internal/version"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second

	// Added to the batch add timeout so a request that waited the full
	// admission time can still be answered.
	writeTimeoutMargin = 10 * time.Second
)

// buildGossipConfig converts daemon config to gossip config
func buildGossipConfig(apiPort int) *gossip.Config {
	gossipConfig := gossip.DefaultConfig()

	gossipConfig.BindAddr = config.Global.GossipAddr
	gossipConfig.BindPort = config.Global.GossipPort
	gossipConfig.NodeName = config.Global.NodeName
	gossipConfig.LogLevel = config.Global.LogLevel

	gossipConfig.MemberAddress = config.Global.MemberAddress
	gossipConfig.App2AppDestination = config.Global.App2AppDestination
	gossipConfig.DocExchangeDestination = config.Global.DocExchangeDestination
	gossipConfig.APIPort = apiPort

	gossipConfig.Tags["trail_version"] = version.TraildVersion

	return gossipConfig
}

// buildAPIConfig converts daemon config to API config
func buildAPIConfig(service *registry.Service, batches *batch.Manager, peers *gossip.Manager) *api.Config {
	apiConfig := api.DefaultConfig()

	apiConfig.BindAddr = config.Global.APIAddr
	apiConfig.BindPort = config.Global.APIPort
	apiConfig.Registry = service
	apiConfig.Batches = batches

	if minWrite := config.Global.Batch.GetAddTimeout() + writeTimeoutMargin; apiConfig.WriteTimeout < minWrite {
		apiConfig.WriteTimeout = minWrite
	}

	// Leave the interface nil rather than holding a nil *gossip.Manager.
	if peers != nil {
		apiConfig.Peers = peers
	}

	return apiConfig
}

// bindAPIListener reserves the API port. An explicit --api must bind as
// given; the default port falls forward to the next free one.
func bindAPIListener() (net.Listener, error) {
	addr, port := config.Global.APIAddr, config.Global.APIPort

	if config.Global.IsExplicitlySet(config.APIField) {
		logging.Info("Pre-binding API listener to explicit port %d", port)
		listener, err := netutil.BindTCP(addr, port)
		if err != nil {
			return nil, fmt.Errorf("failed to pre-bind API listener to %s:%d: %w", addr, port, err)
		}
		return listener, nil
	}

	listener, _, err := netutil.BindTCPWithFallback(addr, port, config.Global.MaxPorts)
	if err != nil {
		return nil, fmt.Errorf("failed to pre-bind API listener: %w", err)
	}

	// Gossip advertises the port read back from the socket.
	actualPort, err := netutil.ListenerPort(listener)
	if err != nil {
		listener.Close()
		return nil, err
	}
	if actualPort != port {
		logging.Warn("Default API port %d was busy, pre-bound to port %d", port, actualPort)
		config.Global.APIPort = actualPort
	} else {
		logging.Info("Pre-bound API listener to port %d", actualPort)
	}
	return listener, nil
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func Run() error {
	logging.SetLevel(config.Global.LogLevel)
	logging.RedirectStandardLog(logging.NewLevelWriter("WARN", "stdlib"))
	logging.Info("Starting trail daemon v%s", version.TraildVersion)

	if config.Global.NodeName == "" {
		config.Global.NodeName = names.Generate()
		logging.Info("Generated node name: %s", config.Global.NodeName)
	}
	logging.Info("Node: %s", config.Global.NodeName)

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStart()

	// Client events
	if config.Global.Notify.Enabled() {
		logging.Info("Publishing client events to Kafka topic %s via %v",
			config.Global.Notify.Topic, config.Global.Notify.Brokers)
	} else {
		logging.Info("No Kafka brokers configured, client events are discarded")
	}
	events := notify.NewAsyncListener(notify.NewPublisher(&config.Global.Notify), &config.Global.Notify)

	// Persistence
	logging.Info("Opening %s document store", config.Global.Database.Backend)
	db, err := database.Open(startCtx, &config.Global.Database, events.Listener())
	if err != nil {
		logging.Error("Failed to open database: %v", err)
		_ = events.Close()
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Dispatch
	ipfs := dispatch.NewIPFSClient(&config.Global.Dispatch)
	gateway := dispatch.NewGatewayClient(&config.Global.Dispatch)
	dispatcher := dispatch.NewBatchDispatcher(ipfs, gateway)
	logging.Info("Dispatching to IPFS at %s and gateway at %s",
		config.Global.Dispatch.IPFSURL, config.Global.Dispatch.GatewayURL)

	// Batching, replaying anything a previous run left pending
	batches := batch.NewManager(db, dispatcher.Dispatch, &config.Global.Batch)
	if err := batches.Start(startCtx); err != nil {
		logging.Error("Failed to start batch manager: %v", err)
		_ = db.Close()
		_ = events.Close()
		return fmt.Errorf("failed to start batch manager: %w", err)
	}

	service := registry.NewService(db, ipfs, gateway, batches)

	// cleanup releases everything started so far when a later step fails.
	cleanup := func() {
		batches.Stop()
		_ = db.Close()
		_ = events.Close()
	}

	apiListener, err := bindAPIListener()
	if err != nil {
		logging.Error("Failed to bind API listener: %v", err)
		cleanup()
		return err
	}

	// Gossip is created before the API so the peer table can be served,
	// and started after it so the bound API port can be advertised.
	var gossipManager *gossip.Manager
	if !config.Global.NoGossip {
		gossipManager, err = gossip.NewManager(buildGossipConfig(config.Global.APIPort))
		if err != nil {
			logging.Error("Failed to create gossip manager: %v", err)
			apiListener.Close()
			cleanup()
			return fmt.Errorf("failed to create gossip manager: %w", err)
		}
	}

	logging.Info("Starting HTTP API server with pre-bound listener on %s", apiListener.Addr().String())
	apiServer, err := api.NewServerWithListener(buildAPIConfig(service, batches, gossipManager), apiListener)
	if err != nil {
		logging.Error("Failed to create API server: %v", err)
		apiListener.Close()
		cleanup()
		return fmt.Errorf("failed to create API server: %w", err)
	}
	if err := apiServer.Start(); err != nil {
		logging.Error("Failed to start API server: %v", err)
		cleanup()
		return fmt.Errorf("failed to start API server: %w", err)
	}

	if gossipManager != nil {
		if err := gossipManager.Start(); err != nil {
			logging.Error("Failed to start gossip manager: %v", err)
			shutdownAPI(apiServer)
			cleanup()
			return fmt.Errorf("failed to start gossip manager: %w", err)
		}

		joinCommand := fmt.Sprintf("  %s --join=%s", os.Args[0], gossipManager.LocalAddr())
		separator := strings.Repeat("-", max(len(joinCommand), 50))
		logging.Info("%s", separator)
		logging.Info("To join this node for peer discovery, use:")
		logging.Info("%s", joinCommand)
		logging.Info("%s", separator)

		if len(config.Global.JoinAddrs) > 0 {
			if err := gossipManager.Join(config.Global.JoinAddrs); err != nil {
				logging.Error("Failed to join cluster: %v", err)

				if netutil.IsConnectionRefusedError(err) {
					logging.Error("TIP: Check if the target node(s) are running and accessible")
					logging.Error("     You can verify with: trailctl peer ls")
				}

				if config.Global.StrictJoin {
					logging.Error("Strict join mode enabled: exiting due to cluster join failure")
					_ = gossipManager.Shutdown()
					shutdownAPI(apiServer)
					cleanup()
					return fmt.Errorf("strict join failed: %w", err)
				}

				logging.Warn("Continuing without peers (use --strict-join to exit on join failure)")
			}
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	logging.Success("Trail daemon started successfully")
	logging.Info("Daemon running... Press Ctrl+C to shutdown")

	logging.Info("Node services started:")
	logging.Info("  - Document store: %s", config.Global.Database.Backend)
	logging.Info("  - HTTP API: %s", apiServer.Addr())
	if gossipManager != nil {
		logging.Info("  - Gossip peer discovery: %s", gossipManager.LocalAddr())
	} else {
		logging.Info("  - Gossip peer discovery: disabled")
	}
	logging.Info("  - Batches recovered and in progress: %d", batches.Active())

	sig := <-sigCh
	logging.Info("Received signal: %v", sig)
	logging.Info("Initiating graceful shutdown...")

	if gossipManager != nil {
		if err := gossipManager.Shutdown(); err != nil {
			logging.Error("Error shutting down gossip manager: %v", err)
		}
	}

	shutdownAPI(apiServer)

	// Batches still open stay pending in the store and are replayed on
	// the next start.
	batches.Stop()

	if err := db.Close(); err != nil {
		logging.Error("Error closing database: %v", err)
	}
	if err := events.Close(); err != nil {
		logging.Error("Error closing event publisher: %v", err)
	}

	logging.Success("Trail daemon shutdown completed")
	return nil
}

func shutdownAPI(apiServer *api.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logging.Error("Error shutting down API server: %v", err)
	}
}
