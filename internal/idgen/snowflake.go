package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Generator hands out time-ordered int64 ids.
type Generator interface {
	Next() int64
}

// Snowflake generates ids from a single snowflake node.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake builds a generator for nodeID (0..1023).
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{node: node}, nil
}

// Next returns a new id. Safe for concurrent use.
func (s *Snowflake) Next() int64 {
	return s.node.Generate().Int64()
}

// Sequence is a process-local monotonic generator used by the in-memory store and tests.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}
