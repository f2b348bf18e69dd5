// Package memory manages user-declared memories: short key/value facts and
// preferences a user explicitly asked to be remembered.
//
// Architecture:
//   - Store: persistence with upsert-by-(owner, key), list, delete and
//     similarity search (SQLite in memory/store/sqlite)
//   - Embedder: text-to-vector conversion with a cost per call
//     (memory/embedder/...)
//   - Manager: validates, embeds "key: value" and writes through the Store
//
// Memories are also a retrieval source: the retrieval package searches them
// alongside conversational content and connectors, and renders them ahead
// of everything else.
//
// ParseRememberCommand recognises explicit "remember that my X is Y"
// instructions so a caller can decide when to call Manager.Store.
package memory
