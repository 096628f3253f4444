package controller

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/clockworklabs/cachesim/internal/cachesimerrors"
	"github.com/clockworklabs/cachesim/internal/callpath"
	"github.com/clockworklabs/cachesim/internal/config"
)

var fieldNames = []string{
	"kMinBlockSize", "kSmallSize", "kSmallBuffer",
	"kLargeBuffer", "kMinLargeAlloc", "kRoundLarge",
}

// WriteBestConfig writes cfg to path in the mandated plain-text format
// (§6): kMinBlockSize, kSmallSize, kSmallBuffer, kLargeBuffer,
// kMinLargeAlloc, kRoundLarge, one per line; then, if includeGrouping,
// the five group boundaries G[0..4] (the MaxSize sentinel written
// verbatim as the platform maximum); then zero or more opaque
// callpath-hash lines, hex-encoded.
func WriteBestConfig(path string, cfg config.Config, includeGrouping bool, hashes []callpath.Hash) error {
	f, err := os.Create(path)
	if err != nil {
		return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "create best-config file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, v := range []uint64{cfg.MinBlockSize, cfg.SmallSize, cfg.SmallBuffer, cfg.LargeBuffer, cfg.MinLargeAlloc, cfg.RoundLarge} {
		fmt.Fprintln(w, v)
	}
	if includeGrouping {
		for _, g := range cfg.GroupBoundaries {
			fmt.Fprintln(w, g)
		}
	}
	for _, h := range hashes {
		fmt.Fprintln(w, hex.EncodeToString(h[:]))
	}

	if err := w.Flush(); err != nil {
		return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "flush best-config file")
	}
	return nil
}

// ReadBestConfig reads a file written by WriteBestConfig. includeGrouping
// must match how the file was written: "a reader must accept either
// variant (with or without the grouping block) based on the controller
// flag supplied" (§6). base supplies every Config field the persistence
// format doesn't carry (MaxSplitSize, rounding knobs, Debug).
func ReadBestConfig(path string, base config.Config, includeGrouping bool) (config.Config, []callpath.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return config.Config{}, nil, cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "open best-config file")
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	readLine := func(name string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "read "+name)
			}
			return "", cachesimerrors.New(cachesimerrors.PersistenceError, "best-config file truncated before "+name)
		}
		return sc.Text(), nil
	}
	readUint := func(name string) (uint64, error) {
		line, err := readLine(name)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return 0, cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "parse "+name)
		}
		return v, nil
	}

	cfg := base
	dsts := []*uint64{&cfg.MinBlockSize, &cfg.SmallSize, &cfg.SmallBuffer, &cfg.LargeBuffer, &cfg.MinLargeAlloc, &cfg.RoundLarge}
	for i, name := range fieldNames {
		v, err := readUint(name)
		if err != nil {
			return config.Config{}, nil, err
		}
		*dsts[i] = v
	}

	cfg.GroupingEnabled = includeGrouping
	if includeGrouping {
		for i := range cfg.GroupBoundaries {
			v, err := readUint(fmt.Sprintf("G[%d]", i))
			if err != nil {
				return config.Config{}, nil, err
			}
			cfg.GroupBoundaries[i] = v
		}
	}

	var hashes []callpath.Hash
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil || len(raw) != len(callpath.Hash{}) {
			return config.Config{}, nil, cachesimerrors.New(cachesimerrors.PersistenceError, "malformed callpath-hash line: "+line)
		}
		var h callpath.Hash
		copy(h[:], raw)
		hashes = append(hashes, h)
	}
	if err := sc.Err(); err != nil {
		return config.Config{}, nil, cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "read callpath-hash lines")
	}

	return cfg, hashes, nil
}
