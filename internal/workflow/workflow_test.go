package workflow

import "github.com/invoiceflow/workflow-engine/internal/bigtool"

// newMockOrchestrator returns an Orchestrator with mock fallback enabled and
// no reachable capability servers, so every Execute call deterministically
// synthesizes a mock result instead of making a network call.
func newMockOrchestrator() *bigtool.Orchestrator {
	common := bigtool.NewServerClient(bigtool.ServerCommon, "http://127.0.0.1:1")
	atlas := bigtool.NewServerClient(bigtool.ServerAtlas, "http://127.0.0.1:1")
	return bigtool.NewOrchestrator(common, atlas, true)
}
