/*
Package kflow runs record streams through flows of connected nodes.

A flow starts at a source node that reads records and announces their schema.
Records then pass along edges through replacer and labeler nodes,
which apply compiled rule sets from the rules package, and end at sink nodes.
Every node runs on its own goroutine and tracks its throughput.
*/
package kflow
