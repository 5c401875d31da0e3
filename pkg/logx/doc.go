// Package logx configures the engine's structured logging.
//
// This is a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Runtime-reconfigurable sinks and level (Service.Apply), so --loglevel
//     and config hot-reload can repoint the same live logger.
package logx
