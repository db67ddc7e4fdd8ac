// Package ids allocates external identifiers.
//
// Account identifiers come from a Redis counter (INCR) and are exposed
// through a [Strategy]: [Sequential] renders the counter, [Obfuscated] renders
// hash(counter, salt) where the salt is created once with SETNX and shared by
// every process through Redis. Identifiers of owned resources are random
// UUIDs and need no coordination.
package ids
