// Package tables formats Markdown pipe tables and builds them from row data.
//
// Format is a pure text transformation: it re-pads every table it finds so
// columns line up and leaves every other line untouched. Formatting its own
// output is a no-op.
package tables
