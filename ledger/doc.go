// Package ledger runs the account operations: registration, profile lookup,
// and the per-account task list.
//
// Every operation resolves the calling account through an identity.Resolver
// and answers with exactly one status.Result. Operations never return Go
// errors; storage and identity failures become InternalError results and
// are logged and traced.
//
//	l, err := ledger.New(ctx, ledger.Config{Store: state.NewMemoryStore()},
//	    "admin", profiles.User{FirstName: "Admin", LastName: "Root", Email: "admin@x.io", Age: 40})
//
//	ctx = identity.WithCaller(ctx, "bob")
//	l.RegisterUser(ctx, "A", "B", "a@b.io", 20)     // 201 Created
//	l.AddTask(ctx, "buy milk", "2024-01-01")        // 201 Created
//	l.GetMyTasks(ctx)                               // 200 Success, 2 tasks
//
// # Consistency
//
// Writes for one account are serialized with a per-account state lock.
// Registration creates the task list and the profile together through
// state.CreateAll, so a profile never exists without its list. Appends are
// additionally compare-and-swap on the list's revision.
package ledger
