// Package events provides a lightweight in-process pub/sub broker for
// operational events. The executor, restore engine, and retention engine
// publish; the CLI subscribes for progress reporting. Slow subscribers are
// skipped rather than blocking publishers.
package events
