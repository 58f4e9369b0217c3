// Package dispatch drives due jobs through their platform adapters. A
// dispatcher pass claims each due job with a conditional status transition,
// publishes it, and records the outcome; the supervisor repeats passes on a
// fixed interval until stopped.
package dispatch
