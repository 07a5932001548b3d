package hnsw

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
)

// gobState is the serialized form of the graph.
type gobState struct {
	Nodes      map[uint32]*node
	EntryPoint uint32
	MaxLevel   int
	HasEntry   bool
	Opts       Options
	Inserted   int64
}

// GobEncode implements gob.GobEncoder.
func (h *HNSW) GobEncode() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	state := gobState{
		Nodes:      h.nodes,
		EntryPoint: h.entryPoint,
		MaxLevel:   h.maxLevel,
		HasEntry:   h.hasEntry,
		Opts:       h.opts,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (h *HNSW) GobDecode(data []byte) error {
	var state gobState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nodes = state.Nodes
	if h.nodes == nil {
		h.nodes = make(map[uint32]*node)
	}
	h.entryPoint = state.EntryPoint
	h.maxLevel = state.MaxLevel
	h.hasEntry = state.HasEntry
	h.opts = state.Opts
	h.levelMultiplier = 1 / math.Log(float64(h.opts.M))
	// The level generator restarts from the configured seed; level draws after
	// a reload differ from the original sequence, which only affects graph
	// shape, not correctness.
	h.rng = rand.New(rand.NewSource(h.opts.RandomSeed))
	return nil
}
