package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/olekukonko/tablewriter"
)

var serverAddress *string

func init() {
	serverAddress = flag.String("server", "http://localhost:9090", "Address of the supplyd node to query")
}

type nodeStatus struct {
	NodeID          uint64 `json:"nodeID"`
	TopologyVersion struct {
		Version uint64 `json:"Version"`
	} `json:"topologyVersion"`
	StoredContexts int `json:"storedContexts"`
}

func main() {
	flag.Parse()

	if flag.NArg() == 0 || flag.Arg(0) != "status" {
		fmt.Fprintf(os.Stderr, "Usage: supplyctl -server <address> status\n")
		os.Exit(1)
	}

	resp, err := http.Get(*serverAddress + "/status")

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unable to reach %s: %v\n", *serverAddress, err)
		os.Exit(1)
	}

	defer resp.Body.Close()

	var status nodeStatus

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Error: unable to decode status response: %v\n", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Node ID", "Topology Version", "Stored Contexts"})
	table.Append([]string{
		fmt.Sprintf("%d", status.NodeID),
		fmt.Sprintf("%d", status.TopologyVersion.Version),
		fmt.Sprintf("%d", status.StoredContexts),
	})

	table.Render()
}
