// Package trainer provides the fine-tuning orchestration: the epoch loop with
// per-epoch validation, the early-stopping controller that decides when to
// checkpoint and when to stop, and the aggregation of repeated runs.
package trainer
