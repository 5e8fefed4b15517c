// Package fault implements the error taxonomy shared by all giggle packages.
//
// Errors are tagged with a Kind instead of being modelled as a class hierarchy.
// Every kind has a sentinel, so callers test for a kind with the standard
// errors.Is:
//
//	block, err := pool.Lease()
//	if errors.Is(err, fault.ErrResourceExhaustion) {
//	    // reject the connection
//	}
//
// A fault.Error optionally wraps a cause. The cause chain is preserved, so
// errors.Is and errors.As keep working for the wrapped error as well (e.g. an
// *net.OpError below a SystemFailure).
//
// Kinds:
//
//   - KindResourceExhaustion: a bounded resource (e.g. the block pool) is used up
//   - KindSystemFailure: the operating system refused an operation (bind, listen, accept)
//   - KindSynchronizationFailure: a lock could not be acquired or released
//   - KindTimeout: a bounded lock acquisition expired (also a KindSynchronizationFailure)
//   - KindLogicFailure: the API was misused (invalid arguments, stale handles)
//
// Errors are created with github.com/cockroachdb/errors, so they carry a stack
// trace that is printed with the %+v verb.
package fault
