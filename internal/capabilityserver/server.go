// Package capabilityserver implements the COMMON and ATLAS capability
// servers: the tool-server RPC contract (spec §6.2) that the Bigtool
// orchestrator calls into. In this deployment both servers run
// in-process, each its own gorilla/mux router, so the workflow engine can
// be exercised end-to-end without external services while still speaking
// the same wire protocol a real deployment would.
package capabilityserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// ToolHandler computes a tool's result from its call params.
type ToolHandler func(params map[string]interface{}) (map[string]interface{}, error)

// Tool is one entry in a server's roster.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Handler     ToolHandler
}

// Server implements the GET /tools and POST /tools/{name} contract for one
// named capability server (COMMON or ATLAS).
type Server struct {
	Name        string
	Description string
	tools       map[string]Tool
	order       []string
}

// New creates a Server with the given name, description, and tool roster.
// Roster order is preserved for GET /tools.
func New(name, description string, tools []Tool) *Server {
	s := &Server{Name: name, Description: description, tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.tools[t.Name] = t
		s.order = append(s.order, t.Name)
	}
	return s
}

// Router builds the server's HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/tools", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/tools/{name}", s.handleCall).Methods(http.MethodPost)
	return r
}

type toolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type toolsResponse struct {
	Tools       []toolDescriptor `json:"tools"`
	Server      string           `json:"server"`
	Description string           `json:"description"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	descs := make([]toolDescriptor, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		descs = append(descs, toolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	writeJSON(w, http.StatusOK, toolsResponse{Tools: descs, Server: s.Name, Description: s.Description})
}

type callResponse struct {
	Success   bool                   `json:"success"`
	Tool      string                 `json:"tool"`
	Result    map[string]interface{} `json:"result"`
	Timestamp string                 `json:"timestamp"`
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	tool, ok := s.tools[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, callResponse{Success: false, Tool: name, Timestamp: time.Now().UTC().Format(time.RFC3339)})
		return
	}

	var params map[string]interface{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err.Error() != "EOF" {
			writeJSON(w, http.StatusBadRequest, callResponse{Success: false, Tool: name, Timestamp: time.Now().UTC().Format(time.RFC3339)})
			return
		}
	}

	result, err := tool.Handler(params)
	if err != nil {
		log.Error("tool call failed", "server", s.Name, "tool", name, "err", err)
		writeJSON(w, http.StatusInternalServerError, callResponse{Success: false, Tool: name, Timestamp: time.Now().UTC().Format(time.RFC3339)})
		return
	}

	writeJSON(w, http.StatusOK, callResponse{
		Success:   true,
		Tool:      name,
		Result:    result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
