package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ashokrj/supplyd/cluster"
	"github.com/ashokrj/supplyd/deployment"
	"github.com/ashokrj/supplyd/logging"
	"github.com/ashokrj/supplyd/messagebus"
	"github.com/ashokrj/supplyd/overflow"
	"github.com/ashokrj/supplyd/partition"
	"github.com/ashokrj/supplyd/rebalance"
)

var (
	configFile *string
	nodeID     *uint64
)

func init() {
	configFile = flag.String("conf", "", "Config file to use for this node")
	nodeID = flag.Uint64("node", 1, "Local node id")
}

func main() {
	flag.Parse()

	config := rebalance.DefaultConfig()

	if *configFile != "" {
		loaded, err := rebalance.LoadFromFile(*configFile)

		if err != nil {
			fmt.Printf("Unable to load config file: %s\n", err.Error())

			return
		}

		config = loaded
	}

	logging.SetLoggingLevel(config.LogLevel)

	affinity := cluster.NewClusterController(cluster.DefaultPartitionCount, 1)

	if err := affinity.AddNode(cluster.NewNodeConfig(*nodeID, "localhost", 0, 1)); err != nil {
		logging.Log.Errorf("unable to register local node: %v", err)

		return
	}

	partitionStore := partition.NewInMemoryPartitionStore()

	overflowStore, err := overflow.OpenLevelDBOverflowStore(config.OverflowStoreFile)

	if err != nil {
		logging.Log.Errorf("unable to open overflow store at %s: %v", config.OverflowStoreFile, err)

		return
	}

	defer overflowStore.Close()

	deploymentRegistry := deployment.NewRegistry()
	bus := messagebus.NewWebSocketMessageBus()

	supplier := rebalance.NewSupplier(*nodeID, affinity, partitionStore, overflowStore, deploymentRegistry, bus, config)
	contexts := rebalance.NewContextStore()
	demanders := cluster.NewDemanderRegistry()
	handler := rebalance.NewDemandHandler(affinity, contexts, supplier, config, demanders)

	bus.Subscribe("demand", func(fromPeerID string, payload []byte) {
		var demand rebalance.DemandMessage

		if err := json.Unmarshal(payload, &demand); err != nil {
			logging.Log.Warningf("dropping malformed demand from %s: %v", fromPeerID, err)

			return
		}

		handler.Handle(demand)
	})

	membership := cluster.NewInMemoryMembershipService()
	subscriber := rebalance.NewTopologySubscriber(contexts, membership, config.RebalanceThreadPoolSize, demanders.Lookup)
	subscriber.Start()

	router := mux.NewRouter()
	bus.RegisterRoutes(router)

	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf8")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"nodeID":          *nodeID,
			"topologyVersion": affinity.CurrentTopologyVersion(),
			"storedContexts":  contexts.Len(),
		})
	})

	logging.Log.Infof("supplyd listening on %s", config.ListenAddress)

	if err := http.ListenAndServe(config.ListenAddress, router); err != nil {
		logging.Log.Errorf("server stopped: %v", err)
	}
}
