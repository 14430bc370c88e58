// Package cli wires together the Cobra command tree for the reviewgate binary.
//
// It defines the root command and all subcommands (review, premerge, lock,
// firewall, cache, config, hook, version), builds the zap logger, reads
// configuration, runs the gates, and maps each decision to an exit code:
// 0 allows, 1 blocks, 2 is a firewall block.
package cli
