// Package state provides the durable key-value substrate under todokit's
// profile and task stores.
//
// The StateStore interface offers plain reads and writes plus the two
// conditional writes the stores are built on: Create (insert only if the key
// is absent) and Update (replace only if the key is still at a known
// revision). Locks give callers per-key mutual exclusion across processes.
//
// # Backends
//
//   - MemoryStore: in-process, used by tests and single-node deployments
//   - NATSStore: NATS JetStream KV bucket
//   - PostgresStore: a single kv table in PostgreSQL, schema managed by Migrate
//
// MemoryStore and PostgresStore also implement Batcher, which creates several
// keys atomically. CreateAll uses it when available and falls back to
// sequential creates with rollback otherwise.
//
// # Usage
//
//	store := state.NewMemoryStore()
//	defer store.Close()
//
//	rev, err := store.Create(ctx, "profiles.YWxpY2U", data)
//	kv, _ := store.GetKeyValue(ctx, "profiles.YWxpY2U")
//	_, err = store.Update(ctx, kv.Key, newData, kv.Revision)
//	if errors.Is(err, state.ErrRevisionMismatch) {
//	    // someone else wrote first; re-read and retry
//	}
//
//	lock, err := state.AcquireLock(ctx, store, "ledger.account.YWxpY2U", 10*time.Second)
//	defer lock.Unlock()
package state
