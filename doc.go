// Package saga coordinates multi-step business operations that span
// independent backing stores with no shared transaction boundary.
//
// When no global transaction is available, the saga pattern provides a
// weaker but practical guarantee: the operation either fully succeeds, or
// every side effect it produced is undone (compensated) on a best-effort
// basis, and its outcome is recorded exactly once regardless of retries
// or crashes mid-flight.
//
// Overview
//
// 1. Define your steps:
//   - Implement the Step interface directly, or package a forward/compensate
//     pair of functions with NewStepFunc.
//   - A step captures its own pre-execution state during Forward and uses
//     only that capture during Compensate.
//
// 2. Pick a KVStore for the idempotency gate:
//   - Use NewMemoryStore for testing, NewFileStore for single-node
//     deployments, or NewRedisStore for shared infrastructure.
//
// 3. Run your transaction:
//   - Create an Engine with NewEngine, passing in your store.
//   - Call ExecuteTransaction with a caller-chosen operation identifier
//     that is stable across retried client requests, and an ordered list
//     of steps.
//
// For a worked example, refer to the steps package and
// examples/subscription.
package saga
