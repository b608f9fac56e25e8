/*
Package tier implements the three storage tiers of the cache hierarchy.

Memory (L1) wraps one of the policy package's bounded maps: fastest,
smallest, volatile. Disk (L2) persists serialized, optionally gzip
compressed entries under a byte budget with a durable JSON index, so the
cache survives restarts. Remote (L3) is a thin Redis client scoped to a
namespace prefix, shared across processes, and fails open on any transport
error.

Each tier owns one coarse lock (the remote tier delegates synchronization
to the Redis client), reports evictions and sizes to the monitor, and
returns the pkg/errors not-found sentinel for clean misses so callers can
tell a miss from an operation failure.
*/
package tier
