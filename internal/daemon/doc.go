// Package daemon runs the background publishing process: it enforces
// single-instance execution with a file lock, fails over jobs a previous run
// left mid-publish, supervises the dispatcher, and sweeps old posted jobs
// and stale media on a daily schedule.
package daemon
