package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets up the process-wide generator. The server and the worker
// run under distinct node ids so ids never collide across processes.
// Subsequent calls are no-ops.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered unique int64. Panics if Init was never
// called; every binary initializes the generator at boot.
func New() int64 {
	return node.Generate().Int64()
}
