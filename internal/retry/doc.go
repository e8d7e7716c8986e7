// Package retry runs remote operations with bounded, classified retries.
//
// A Classifier sorts each failure into Fatal or Retryable. Fatal failures
// are returned at once. Retryable failures are retried after an
// exponential backoff with jitter until the attempt ceiling is reached,
// after which Do returns an *ExhaustedError wrapping the last failure.
package retry
