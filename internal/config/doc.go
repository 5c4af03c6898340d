// Package config provides loading and environment overlay for this
// service's runtime configuration. It exposes a Default() baseline and
// helpers to construct the pieces cmd/seqflowd wires together.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/seqflow.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	store, _ := docstore.OpenPath(cfg.DataDir)
//	es := eventstream.New(store, eventstream.Config{
//	    ReplayBuffer: cfg.Stream.ReplayBuffer,
//	    Workers:      cfg.Stream.Workers,
//	}, logger)
package config
