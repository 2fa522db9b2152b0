// Command finetune trains a text classifier with early stopping over one or
// more independent runs and writes checkpoints and a report.
//
// Settings come from the defaults, then an optional YAML file given with
// --config, then command line flags:
//
//	finetune --config job.yaml --num-runs 3 --plot
//
// A failed run exits with status 1 after printing the runs that completed.
package main
