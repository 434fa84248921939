// Package password provides the pluggable credential hashing used by the
// authentication core: Argon2id for every newly stored hash, with an opt-in
// verification path for the legacy single-round unsalted MD5 digests still
// present in migrated master databases.
package password
