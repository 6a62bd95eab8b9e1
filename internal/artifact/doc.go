// Package artifact persists per-record and per-split outputs.
//
// Binary artifacts are gob streams inside snappy framing, prefixed by a
// four-byte magic and a format version. Metadata and summaries are JSON; the
// allocation table is CSV. All writes go through fileutil.WriteAtomic so a
// crashed run never leaves a truncated artifact behind.
package artifact
