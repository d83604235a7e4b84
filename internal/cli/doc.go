// Parses flags and configures logging for the kilnd daemon and CLI.
//
// The binary accepts the following flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	-s, --socket    Unix socket path.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level and verbosity before
// the selected command runs.
//
// The start command runs the daemon. The bake, run, plan, and history
// commands act locally against containerd and the ledger without requiring
// a running daemon.
package cli
