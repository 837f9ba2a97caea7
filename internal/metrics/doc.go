// Package metrics records run and block execution metrics.
//
// Components receive a Recorder. NoopRecorder is the default so callers never
// check for nil; PrometheusRecorder backs `--metrics-file` (textfile export for
// node_exporter) and the optional metrics listener of `mdexec watch`.
package metrics
