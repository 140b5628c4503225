// Package inflight tracks message identifiers that currently have a pipeline
// running, so that overlapping deliveries of the same message are dropped.
package inflight
