// Package scheduler drives the periodic refresh cycle: fetch pending
// observations, fuse them, apply the result to the condition graph,
// replan, publish. A minimum inter-replan interval keeps noisy signals
// from causing oscillating plans.
package scheduler
