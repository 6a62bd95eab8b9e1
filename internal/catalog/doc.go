// Package catalog records preprocess and split runs in SQLite.
//
// Each run gets a uuid and a row in `runs`; per-record outcomes, the
// allocation table, split statistics and validation warnings hang off that
// id. The schema is embedded and stamped into PRAGMA user_version; a catalog
// with another version must be deleted and is recreated on next open.
package catalog
