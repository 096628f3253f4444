package main

import (
	"os"

	"github.com/clockworklabs/cachesim/internal/replay"
)

func loadTrace(path string) (*replay.Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return replay.ReadTraceCSV(f)
}
