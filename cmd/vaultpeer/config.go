package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/pflag"

	"github.com/skirmishlabs/vault/registry"
	"github.com/skirmishlabs/vault/txnengine"
)

// PeerConfig is one entry of --registry.peers, "id@address".
type PeerConfig struct {
	ID      string
	Address string
}

// Config is the fully resolved configuration for a vaultpeer process.
// Flag names follow the dotted convention (--peer.id, --store.redis.addr)
// the wider pack's config loaders use with koanf/posflag.
type Config struct {
	PeerID      string
	ListenAddr  string
	RedisAddr   string
	Peers       []PeerConfig
	InitialPack map[string]int    // pack_template_id -> initial stock
	Templates   map[string][]string // pack_template_id -> card ids
	Txn         txnengine.Config
}

func defaultFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("vaultpeer", pflag.ContinueOnError)
	fs.String("peer.id", "", "this peer's id, must match an entry in registry.peers")
	fs.String("peer.listen", ":8080", "address this peer's RPC server listens on")
	fs.String("store.redis.addr", "127.0.0.1:6379", "Redis address for the shared state store")
	fs.StringSlice("registry.peers", nil, "peer list as id@address, repeatable")
	fs.StringSlice("stock.initial", nil, "initial pack stock as template_id:count, repeatable")
	fs.Duration("txn.prepare-timeout", 2*time.Second, "T_prepare")
	fs.Duration("txn.decide-timeout", 5*time.Second, "T_decide")
	fs.Duration("txn.recovery-interval", 5*time.Second, "sweeper scan interval")
	fs.Duration("txn.recovery-age", 30*time.Second, "T_recovery")
	fs.Duration("txn.block-max", 10*time.Minute, "T_block_max")
	fs.Duration("txn.retention", 24*time.Hour, "completed-record retention window")
	fs.String("config", "", "optional JSON config file, overridden by flags")
	return fs
}

// ParseConfig mirrors the teacher's cmd/relay.ParseRelay(ctx, args) shape:
// parse flags, layer an optional file on top, decode into a typed struct.
func ParseConfig(args []string) (*Config, error) {
	fs := defaultFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("loading flags: %w", err)
	}

	peerStrs := k.Strings("registry.peers")
	peers := make([]PeerConfig, 0, len(peerStrs))
	for _, spec := range peerStrs {
		id, addr, ok := strings.Cut(spec, "@")
		if !ok {
			return nil, fmt.Errorf("invalid registry.peers entry %q, want id@address", spec)
		}
		peers = append(peers, PeerConfig{ID: id, Address: addr})
	}

	initial := map[string]int{}
	for _, spec := range k.Strings("stock.initial") {
		id, countStr, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("invalid stock.initial entry %q, want template_id:count", spec)
		}
		var count int
		if _, err := fmt.Sscanf(countStr, "%d", &count); err != nil {
			return nil, fmt.Errorf("invalid stock.initial count in %q: %w", spec, err)
		}
		initial[id] = count
	}

	// Pack templates come from the config file's "templates" object
	// (template id -> card ids); there is no flag for them.
	templates := map[string][]string{}
	if err := k.Unmarshal("templates", &templates); err != nil {
		return nil, fmt.Errorf("invalid templates: %w", err)
	}

	cfg := &Config{
		PeerID:      k.String("peer.id"),
		ListenAddr:  k.String("peer.listen"),
		RedisAddr:   k.String("store.redis.addr"),
		Peers:       peers,
		InitialPack: initial,
		Templates:   templates,
		Txn: txnengine.Config{
			PrepareTimeout:   k.Duration("txn.prepare-timeout"),
			DecideTimeout:    k.Duration("txn.decide-timeout"),
			RecoveryInterval: k.Duration("txn.recovery-interval"),
			RecoveryAge:      k.Duration("txn.recovery-age"),
			BlockMax:         k.Duration("txn.block-max"),
			RetentionWindow:  k.Duration("txn.retention"),
		},
	}
	if cfg.PeerID == "" {
		return nil, fmt.Errorf("peer.id is required")
	}
	return cfg, nil
}

func (c *Config) buildRegistry() *registry.Registry {
	peers := make([]registry.Peer, 0, len(c.Peers))
	for _, p := range c.Peers {
		peers = append(peers, registry.Peer{ID: p.ID, Address: p.Address})
	}
	return registry.New(c.PeerID, peers)
}
