// Package main implements the rhythmset command line: preprocessing ECG
// records into labeled rhythm windows, allocating whole records to
// train/val/test splits, and inspecting the run catalog.
package main
