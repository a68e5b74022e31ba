package mcpserver

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/streamcore/rollup/internal/checkpoint"
	"github.com/streamcore/rollup/internal/circuit"
	"github.com/streamcore/rollup/internal/graph"
	"github.com/streamcore/rollup/internal/rollup"
	"github.com/streamcore/rollup/pkg/config"
)

// graphSession is one live dataflow graph a client is driving via
// repeated rollup_tick calls, identified by an opaque graph_id.
type graphSession struct {
	mu    sync.Mutex
	graph *circuit.Graph[string, int64, int64, int64, int64]
	clock *circuit.Clock[string, int64, int64, int64, int64]
	store *checkpoint.Store[string, int64, int64, rollup.Output[int64, int64]]
}

// sessionRegistry hands out graph_id-addressable sessions, each backed
// by a fresh circuit.Graph built from a dataflow-graph document. It is
// the MCP-server-local analog of a database connection pool: sessions
// live only as long as the server process, with no persistence beyond
// what each session's checkpoint store writes to disk.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*graphSession
	nextID   atomic.Uint64

	logger         *slog.Logger
	checkpointDir  string
	spillThreshold int
}

func newSessionRegistry(logger *slog.Logger, checkpointDir string, spillThreshold int) *sessionRegistry {
	return &sessionRegistry{
		sessions:       make(map[string]*graphSession),
		logger:         logger,
		checkpointDir:  checkpointDir,
		spillThreshold: spillThreshold,
	}
}

// create builds a new session from a dataflow-graph document and
// registers it under a fresh graph_id.
func (r *sessionRegistry) create(document []byte) (string, *graphSession, error) {
	g, err := graph.Build(document)
	if err != nil {
		return "", nil, err
	}

	clock := graph.NewClock(g)

	sess := &graphSession{graph: g, clock: clock}

	if r.checkpointDir != "" {
		sess.store = graph.WireCheckpoint(clock, config.CheckpointConfig{
			Enabled:        true,
			Directory:      r.checkpointDir,
			SpillThreshold: r.spillThreshold,
		}, r.logger)
	}

	id := fmt.Sprintf("graph-%d", r.nextID.Add(1))

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	return id, sess, nil
}

func (r *sessionRegistry) get(id string) (*graphSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]

	return sess, ok
}
