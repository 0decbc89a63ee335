// Package main serves as the entry point for the batchflow application.
// It provides a batch job orchestration system that splits large work item
// collections into provider-sized submissions, tracks each submission as a
// job inside a logical group, and merges per-item results on completion.
package main

import "batchflow/cmd"

func main() {
	cmd.Execute()
}
