/*
Package codec provides the canonical record encoding for Quarry's
persisted state.

Records are stored as JSON. The encoding is deterministic: struct fields
appear in declaration order, map keys are sorted, and set-valued fields
(types.StringSet) marshal as sorted arrays. Two replicas that apply the
same request sequence therefore write byte-identical values, which is a
requirement of the replicated state machine.

Encode and Decode wrap failures in *CodecError so callers can distinguish
serialization faults from storage faults.
*/
package codec
