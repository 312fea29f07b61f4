// Package tasks stores one ordered, append-only task list per account.
//
// A list is created once, when its account is onboarded, and only ever
// grows afterwards:
//
//	store := tasks.NewStore(state.NewMemoryStore())
//	entry, _ := tasks.Entry(account, []tasks.Task{tasks.DefaultTask()})
//	_ = state.CreateAll(ctx, backend, []state.Entry{entry})
//
//	n, err := store.Append(ctx, account, tasks.NewTask("Buy milk", "2024-05-01"))
//
// # Concurrency
//
// Append is a read-modify-write over the whole list. Each write is a
// compare-and-swap against the revision that was read; when another writer
// got there first the list is re-read and the append retried. Concurrent
// appends to one account therefore never lose an entry, and a reader always
// sees either the old list or the new one.
//
// Appending to an account that has no list fails with ErrNotFound. No list
// is created as a side effect.
package tasks
