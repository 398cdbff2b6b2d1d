// Package internal contains the core implementation packages for yamlinc.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the yamlinc CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - document: Ordered document tree and the YAML, JSON and TOML loaders
//   - merge: Deep merge of fragments and repair of objectized sequences
//   - resolver: Recursive expansion of include directives with cycle detection
//   - compiler: Header rendering and atomic writes of the generated file
//   - watcher: File system monitoring with debouncing
//   - process: Spawning of the user command and exit code forwarding
//   - orchestrator: Watch and exec modes driving compiler and process
//   - config: Configuration loaded through Viper
//   - logging: Structured logging on top of slog and charmbracelet/log
//   - errors: Typed errors with codes and process exit codes
//   - version: Build information and the engine banner
//
// # Data Flow
//
// A single compile flows in one direction:
//
//   - The resolver loads the input through the document loader
//   - Every include directive is expanded depth first and merged in
//   - The compiler renders the header and writes <name>.inc.<ext>
//
// In watch mode the watcher batches file events and hands them to the
// orchestrator, which recompiles and keeps at most one child running.
package internal
