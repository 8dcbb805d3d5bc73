// Package bigtool implements the Tool Orchestrator: capability-based and
// description-based (dynamic) tool discovery, selection, and the call
// protocol that routes to the COMMON/ATLAS capability servers.
package bigtool

import (
	"sort"
	"sync"
)

// Pools is the static capability -> candidate tool names mapping, carried
// over in shape from the original's BigtoolPicker.POOLS.
var Pools = map[string][]string{
	"ocr":           {"google_vision", "aws_textract", "tesseract"},
	"enrichment":    {"clearbit", "people_data_labs", "vendor_db"},
	"erp_connector": {"sap_sandbox", "netsuite", "mock_erp"},
	"db":            {"postgres", "sqlite", "dynamodb"},
	"email":         {"sendgrid", "ses", "smartlead"},
	"storage":       {"s3", "gcs", "local_fs"},
}

// Availability simulates tool health checks; a real deployment would probe
// these. sap_sandbox, netsuite, dynamodb, and smartlead start unavailable,
// matching the original's simulated outage so the tool-fallback scenario
// (spec §8 scenario 5) has something concrete to fail over from.
var Availability = map[string]bool{
	"google_vision": true, "aws_textract": true, "tesseract": true,
	"clearbit": true, "people_data_labs": true, "vendor_db": true,
	"sap_sandbox": false, "netsuite": false, "mock_erp": true,
	"postgres": true, "sqlite": true, "dynamodb": false,
	"sendgrid": true, "ses": true, "smartlead": false,
	"s3": true, "gcs": true, "local_fs": true,
}

// Priorities orders each pool's candidates best-first (lower wins).
var Priorities = map[string]int{
	"google_vision": 1, "aws_textract": 2, "tesseract": 3,
	"clearbit": 1, "people_data_labs": 2, "vendor_db": 3,
	"sap_sandbox": 1, "netsuite": 2, "mock_erp": 3,
	"postgres": 1, "sqlite": 2, "dynamodb": 3,
	"sendgrid": 1, "ses": 2, "smartlead": 3,
	"s3": 1, "gcs": 2, "local_fs": 3,
}

// Selection is Picker.Select's result, mirroring the original's
// selection-result dict.
type Selection struct {
	Capability   string   `json:"capability"`
	SelectedTool string   `json:"selected_tool"`
	Pool         []string `json:"pool"`
	Available    []string `json:"available"`
	Reason       string   `json:"reason"`
	Success      bool     `json:"success"`
}

// Picker holds the static pool/availability/priority tables plus a
// read-mostly lock guarding availability overrides made by tests or
// operator tooling.
type Picker struct {
	mu           sync.RWMutex
	pools        map[string][]string
	availability map[string]bool
	priorities   map[string]int
}

// NewPicker creates a Picker seeded from the package-level static tables.
func NewPicker() *Picker {
	p := &Picker{
		pools:        make(map[string][]string, len(Pools)),
		availability: make(map[string]bool, len(Availability)),
		priorities:   make(map[string]int, len(Priorities)),
	}
	for k, v := range Pools {
		p.pools[k] = append([]string(nil), v...)
	}
	for k, v := range Availability {
		p.availability[k] = v
	}
	for k, v := range Priorities {
		p.priorities[k] = v
	}
	return p
}

// Select picks the best available tool for capability, lowest priority
// number first among available candidates. poolHint, if non-nil, narrows
// the pool to the intersection before filtering by availability.
func (p *Picker) Select(capability string, poolHint []string) Selection {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pool := p.pools[capability]
	if len(pool) == 0 {
		return Selection{Capability: capability, Reason: "no_pool_found", Pool: []string{}, Available: []string{}}
	}
	if poolHint != nil {
		hinted := make(map[string]bool, len(poolHint))
		for _, t := range poolHint {
			hinted[t] = true
		}
		filtered := make([]string, 0, len(pool))
		for _, t := range pool {
			if hinted[t] {
				filtered = append(filtered, t)
			}
		}
		pool = filtered
	}

	available := make([]string, 0, len(pool))
	for _, t := range pool {
		if p.availability[t] {
			available = append(available, t)
		}
	}
	if len(available) == 0 {
		return Selection{Capability: capability, Reason: "no_available_tools", Pool: pool, Available: []string{}}
	}

	sort.SliceStable(available, func(i, j int) bool {
		return p.priority(available[i]) < p.priority(available[j])
	})

	return Selection{
		Capability:   capability,
		SelectedTool: available[0],
		Pool:         pool,
		Available:    available,
		Reason:       "best_available_by_priority",
		Success:      true,
	}
}

func (p *Picker) priority(tool string) int {
	if pr, ok := p.priorities[tool]; ok {
		return pr
	}
	return 999
}

// SetAvailability overrides a tool's availability, for tests simulating an
// outage or recovery.
func (p *Picker) SetAvailability(tool string, available bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availability[tool] = available
}

// Pool returns the candidate tool names for capability.
func (p *Picker) Pool(capability string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.pools[capability]...)
}

// Capabilities lists every capability the picker knows a pool for.
func (p *Picker) Capabilities() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.pools))
	for k := range p.pools {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
