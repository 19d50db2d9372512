// Package config loads LoaderConfig and ServerConfig from HCL files
// using github.com/hashicorp/hcl/v2, so loader and server settings are
// an explicit record threaded through construction rather than
// scattered global state. Programmatic construction remains available
// for embedders that don't want a file.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/rme-go/canary-core/internal/liveengine"
	"github.com/rme-go/canary-core/internal/mapcodec"
)

// LoaderFile is the HCL shape of loader settings, decoded with
// hclsimple and translated into mapcodec.LoaderConfig.
type LoaderFile struct {
	UnknownItemPolicy      string `hcl:"unknown_item_policy,optional"`
	AllowUnsupportedVersion bool  `hcl:"allow_unsupported_version,optional"`
	MaxNodeDepth           int    `hcl:"max_node_depth,optional"`
	MaxTiles               int    `hcl:"max_tiles,optional"`
}

// ServerFile is the HCL shape of LiveEngine server settings.
type ServerFile struct {
	ListenAddr          string   `hcl:"listen_addr"`
	Password            string   `hcl:"password,optional"`
	BannedHosts         []string `hcl:"banned_hosts,optional"`
	RateLimit           int      `hcl:"rate_limit,optional"`
	ChunkTileBudget     int      `hcl:"chunk_tile_budget,optional"`
	WriteTimeoutSeconds int      `hcl:"write_timeout_seconds,optional"`
}

// LoadLoaderConfig parses path as HCL and returns a mapcodec.LoaderConfig.
// Collaborator fields (Catalog, Warnings) are never set from file
// content; callers attach those programmatically after loading.
func LoadLoaderConfig(path string) (mapcodec.LoaderConfig, error) {
	var f LoaderFile
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return mapcodec.LoaderConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg := mapcodec.LoaderConfig{
		AllowUnsupportedVersion: f.AllowUnsupportedVersion,
		MaxNodeDepth:            f.MaxNodeDepth,
		MaxTiles:                f.MaxTiles,
	}
	switch f.UnknownItemPolicy {
	case "", "placeholder":
		cfg.UnknownItem = mapcodec.UnknownItemPlaceholder
	case "skip":
		cfg.UnknownItem = mapcodec.UnknownItemSkip
	case "error":
		cfg.UnknownItem = mapcodec.UnknownItemError
	default:
		return mapcodec.LoaderConfig{}, fmt.Errorf("config: unknown unknown_item_policy %q", f.UnknownItemPolicy)
	}
	return cfg, nil
}

// LoadServerConfig parses path as HCL and returns the listen address
// plus a liveengine.ServerConfig.
func LoadServerConfig(path string) (listenAddr string, cfg liveengine.ServerConfig, err error) {
	var f ServerFile
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return "", liveengine.ServerConfig{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	banned := make(map[string]bool, len(f.BannedHosts))
	for _, h := range f.BannedHosts {
		banned[h] = true
	}

	cfg = liveengine.ServerConfig{
		Password:        f.Password,
		BannedHosts:     banned,
		RateLimit:       f.RateLimit,
		ChunkTileBudget: f.ChunkTileBudget,
	}
	if f.WriteTimeoutSeconds > 0 {
		cfg.WriteTimeout = time.Duration(f.WriteTimeoutSeconds) * time.Second
	}
	return f.ListenAddr, cfg, nil
}

// DefaultLoaderConfig returns mapcodec's zero-value defaults, for
// embedders that skip HCL entirely.
func DefaultLoaderConfig() mapcodec.LoaderConfig {
	return mapcodec.LoaderConfig{}
}
