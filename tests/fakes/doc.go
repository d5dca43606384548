// Package fakes provides test doubles for the secret store SDK clients and
// for lookup.Store itself.
//
// The SDK fakes stand in for the Azure Key Vault, AWS Secrets Manager, AWS
// Parameter Store, GCP Secret Manager and Akeyless clients so the stores in internal/stores can be tested
// without a cloud account. FakeStore is an in-memory lookup.Store that counts
// remote calls, used to test strategies, sources and commands.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior.
//
// Usage:
//
//	store := fakes.NewFakeStore("memory").
//	    WithSecret("secret", "1234").
//	    WithListError(errors.New("vault unreachable"))
//	strategy := strategies.NewCached(store)
//	// Exercise strategy, then inspect store.ListCalls() and store.GetCalls().
package fakes
