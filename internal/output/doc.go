// Package output formats gate decisions for display or machine consumption.
//
// Three formats are supported:
//   - text     human-readable terminal output (default), colored on a TTY
//   - json     the full decision, including the classified error text
//   - markdown pull request comment with collapsible issue sections
//
// Use [GetWriter] to obtain a [Writer] for a format string, then call
// [Writer.Write] with an [io.Writer] and a [gate.Decision].
package output
