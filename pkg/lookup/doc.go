// Package lookup defines the read-side contract between kvconfig and a remote
// secret store.
//
// A configuration framework asks a property source for "property X" or "all
// properties". This package describes the two halves of answering that
// question:
//
//   - Store is the remote secret store client. It can list every secret
//     identifier and fetch one value per round trip. Transport, credentials
//     and pagination live behind it.
//   - Strategy turns property requests into Store calls. kvconfig ships a
//     cached strategy (periodically refreshed in-memory snapshot) and a direct
//     strategy (every call reaches the store). Both satisfy the same contract
//     and are chosen once, at construction.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────┐
//	│          Property source / chain / HTTP resource            │
//	│               (internal/configsource, server)               │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│                   Strategy interface                        │
//	│                     (pkg/lookup)                ◄───────────┤
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│          Cached / Direct implementations                    │
//	│               (internal/strategies)                         │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│   Store clients: Azure Key Vault, AWS SM, GCP SM            │
//	│               (internal/stores)                             │
//	└─────────────────────────────────────────────────────────────┘
//
// # Secret Identifiers and Property Names
//
// Remote stores restrict the alphabet of secret identifiers. Azure Key Vault
// accepts only 0-9, a-z, A-Z and '-'. Property names used by applications
// routinely contain dots and slashes ("database.url", "app/config"). ToSecretName
// maps any property name onto that alphabet by replacing every other rune
// with '-':
//
//	lookup.ToSecretName("quarkus.datasource.jdbc.url") // "quarkus-datasource-jdbc-url"
//	lookup.ToSecretName("app/config@value")            // "app-config-value"
//	lookup.ToSecretName("my-secret")                   // "my-secret"
//
// # Results
//
// Value reports a Result rather than a bare string so that "the store does not
// have it", "the name can never exist" and "the store failed and the failure
// was swallowed" stay distinguishable in tests and metrics, while callers that
// only care about presence use Result.Get.
//
// # Threading and Concurrency
//
// Store and Strategy implementations must be safe for concurrent use.
package lookup
