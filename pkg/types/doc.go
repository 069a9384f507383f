/*
Package types defines the core data structures used throughout Quarry.

This package contains the domain model of the content-extraction control
plane: tasks, executors, extractors, content metadata, extraction policies,
structured data schemas, indexes, and the state changes that record every
mutation of the control plane.

All types are designed to be:
  - Deterministically serializable (JSON with stable field ordering;
    sets marshal as sorted arrays, timestamps are integer unix seconds)
  - Keyed by string ids (all cross-entity references are by id, no cycles)
  - Validated via typed string constants for enums

# Core Types

Work execution:
  - Task: one unit of extraction work against a piece of content
  - TaskOutcome: unknown, success, failure (success/failure are terminal)

Fleet:
  - ExtractorDescription: a worker type (what it accepts and produces)
  - ExecutorMetadata: a running instance of an extractor

Content:
  - ContentMetadata: content tracked in a namespace (payload in blob store)
  - ContentExtractionPolicyMapping: which policies ran on a content id

Policy and schema:
  - ExtractionPolicy: binds an extractor to a namespace
  - StructuredDataSchema: shape of structured records per namespace
  - Index: a derived index populated from extracted content

Journal:
  - StateChange: a domain event; ProcessedAt is nil until consumed
  - ChangeType: typed event kind constants

# Determinism

Two replicas applying the same request sequence must produce byte-identical
persisted records. Every collection that is semantically a set uses
StringSet, which marshals as a sorted JSON array; Go's encoding/json
already emits struct fields in declaration order and map keys sorted.

# See Also

  - pkg/statemachine for the apply layer that mutates this model
  - pkg/storage for the persisted column layout
*/
package types
