// Package dynamock provides testing utilities for the hangoutstore package.
//
// This package includes:
//   - An in-memory DynamoDB client that evaluates conditions, updates,
//     queries and transactions
//   - An expectation-based mock DynamoDB client for unit testing error paths
//   - Local DynamoDB integration utilities
//   - Fixture builders for the hangout domain
//   - Test data seeding helpers, including JSON seed documents
//
// # Memory Client
//
// MemoryClient keeps tables in process and is the default backend for store
// tests. It records every call so tests can assert on the requests a store
// operation issued:
//
//	store, client := dynamock.NewMemoryStore(t)
//	err := store.CreateGroup(ctx, dynamock.NewGroup("g1"))
//	...
//	assert.Len(t, client.Calls("TransactWriteItems"), 1)
//
// Set Unprocessed to leave batch write requests unprocessed, or Intercept to
// fail a call before it is applied:
//
//	client.Intercept = func(op string, input any) error {
//		if op == "TransactWriteItems" {
//			return &types.TransactionConflictException{}
//		}
//		return nil
//	}
//
// # Mock Client
//
// The MockClient provides an expectation-based mock implementation where you set
// expectations for specific operations. Any operation without an expectation
// fails the test:
//
//	mock := dynamock.NewMockClient(t)
//	mock.GetFunc = func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
//		return nil, &types.ProvisionedThroughputExceededException{}
//	}
//	store := hangoutstore.NewStore(mock, hangoutstore.NewTable("test-table"))
//
// # Fixtures
//
// Builders return valid entities with sensible defaults, adjusted by
// functional options:
//
//	hangout := dynamock.NewHangout("h1", []string{"g1"},
//		dynamock.WithTitle("Bouldering"),
//		dynamock.WithStart(time.Now().Add(24*time.Hour)),
//	)
//
// # Seeding
//
// SeedTestData writes entities straight into a table without going through
// the store, which is how drifted pointers or legacy rows are set up:
//
//	seeder := dynamock.NewSeedTestData(client, store.Table())
//	err := seeder.SeedEntities(ctx, group, hangout)
//	n, err := seeder.SeedFromJSON(ctx, strings.NewReader(`[
//		{"type": "Group", "attributes": {"groupId": "g1", "groupName": "Climbers"}}
//	]`))
//
// # Local DynamoDB
//
// Integration tests can run against DynamoDB Local on port 8000 and are
// skipped when it is not running or when -short is set:
//
//	dynamock.RunIntegrationTest(t, nil, func(local *dynamock.LocalDynamoDB, store *hangoutstore.Store) {
//		...
//	})
package dynamock
