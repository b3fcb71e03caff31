// Package mocks provides test doubles for ports interfaces.
//
// These mocks are simple, thread-safe, in-memory implementations suitable for
// unit testing the pipeline stages. Each mock provides:
//
//   - Behavior that mirrors the PostgreSQL repositories, including the
//     conflict-tolerant inserts and additive stats upserts
//   - Callback functions (xxxFn) for injecting failures per test
//   - Helper methods for seeding state directly
//
// # Usage Example
//
//	func TestMyStage(t *testing.T) {
//		store := mocks.NewStore()
//		store.AddUser(domain.User{ID: 1, Language: "en"})
//		src := store.Follow(1, "channel")
//
//		stage := New(store, ...)
//		// ... run and assert on store contents
//	}
//
// # Available Mocks
//
//   - Store: implements ports.Store
package mocks
