package txnengine

import "time"

// Config holds the timeouts and tunables named throughout spec.md §4.3.
// Defaults match the spec's defaults exactly.
type Config struct {
	PrepareTimeout    time.Duration // T_prepare, default 2s
	DecideTimeout     time.Duration // T_decide, default 5s
	RecoveryInterval  time.Duration // how often the sweeper scans, not spec-named
	RecoveryAge       time.Duration // T_recovery, default 30s
	BlockMax          time.Duration // T_block_max, default 10m
	RetentionWindow   time.Duration // completed-record retention, default 24h
}

// DefaultConfig returns the defaults spec.md names explicitly.
func DefaultConfig() Config {
	return Config{
		PrepareTimeout:   2 * time.Second,
		DecideTimeout:    5 * time.Second,
		RecoveryInterval: 5 * time.Second,
		RecoveryAge:      30 * time.Second,
		BlockMax:         10 * time.Minute,
		RetentionWindow:  24 * time.Hour,
	}
}
