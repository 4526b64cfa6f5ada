package dynamock

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/nisimpson/hangoutstore"
)

// NewMemoryStore returns a Store backed by a fresh MemoryClient holding the
// table described by the options.
func NewMemoryStore(t testing.TB, opts ...func(*hangoutstore.Table)) (*hangoutstore.Store, *MemoryClient) {
	t.Helper()

	client := NewMemoryClient()
	table := hangoutstore.NewTable("hangouts-test", opts...)
	if _, err := client.CreateTable(context.Background(), table.CreateTableInput()); err != nil {
		t.Fatalf("failed to create memory table: %v", err)
	}
	return hangoutstore.NewStore(client, table), client
}

// TableManager manages DynamoDB tables for testing, providing automatic cleanup.
type TableManager struct {
	local  *LocalDynamoDB
	tables []string // track created tables for cleanup
}

// NewTableManager creates a new table manager with the given DynamoDB client.
func NewTableManager(client *dynamodb.Client) *TableManager {
	return &TableManager{local: &LocalDynamoDB{Client: client}}
}

// CreateTestTable creates a table with the hangout schema and tracks it for cleanup.
func (tm *TableManager) CreateTestTable(ctx context.Context, table *hangoutstore.Table) error {
	if err := tm.local.CreateHangoutTable(ctx, table); err != nil {
		return err
	}
	tm.tables = append(tm.tables, table.TableName)
	return nil
}

// Cleanup deletes all tables created by this manager.
func (tm *TableManager) Cleanup(ctx context.Context) error {
	for _, tableName := range tm.tables {
		if err := tm.local.DeleteTable(ctx, tableName); err != nil {
			return fmt.Errorf("failed to delete table %s: %w", tableName, err)
		}
	}
	tm.tables = tm.tables[:0]
	return nil
}

// GetTableNames returns the names of all tables managed by this manager.
func (tm *TableManager) GetTableNames() []string {
	names := make([]string, len(tm.tables))
	copy(names, tm.tables)
	return names
}

// WithIsolatedTable runs fn against a store on a freshly created table that
// is deleted afterwards.
func WithIsolatedTable(t *testing.T, client *dynamodb.Client, fn func(store *hangoutstore.Store)) {
	ctx := context.Background()
	table := hangoutstore.NewTable(NewTestTable(sanitize(t.Name())))
	tm := NewTableManager(client)

	defer func() {
		if err := tm.Cleanup(ctx); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", table.TableName, err)
		}
	}()

	if err := tm.CreateTestTable(ctx, table); err != nil {
		t.Fatalf("Failed to create test table %s: %v", table.TableName, err)
	}

	fn(hangoutstore.NewStore(client, table))
}

// sanitize maps a test name onto the characters allowed in table names.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, name)
}

// WithLocalDynamoDB runs a test function with a local DynamoDB instance.
// It checks if DynamoDB Local is available and skips the test if not.
func WithLocalDynamoDB(t *testing.T, port int, fn func(local *LocalDynamoDB)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	local := NewLocalDynamoDB(port)
	if !local.IsAvailable(context.Background()) {
		t.Skipf("DynamoDB Local not available on port %d", port)
	}

	fn(local)
}

// WithDefaultLocalDynamoDB runs a test function with the default local DynamoDB instance (port 8000).
func WithDefaultLocalDynamoDB(t *testing.T, fn func(local *LocalDynamoDB)) {
	WithLocalDynamoDB(t, DefaultLocalPort, fn)
}

// NewTestTable generates a unique table name for testing.
func NewTestTable(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// SeedTestData writes fixtures straight into a table, bypassing the store's
// write paths. Pointers can be seeded this way to set up drift.
type SeedTestData struct {
	client DynamoDBAPI
	table  *hangoutstore.Table
}

// NewSeedTestData creates a new test data seeder.
func NewSeedTestData(client DynamoDBAPI, table *hangoutstore.Table) *SeedTestData {
	return &SeedTestData{client: client, table: table}
}

// SeedEntity seeds a single entity into the table.
func (s *SeedTestData) SeedEntity(ctx context.Context, entity hangoutstore.Entity) error {
	putInput, err := s.table.MarshalPut(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	if _, err := s.client.PutItem(ctx, putInput); err != nil {
		return fmt.Errorf("failed to put entity: %w", err)
	}
	return nil
}

// SeedEntities seeds multiple entities into the table in batches.
func (s *SeedTestData) SeedEntities(ctx context.Context, entities ...hangoutstore.Entity) error {
	batches, err := s.table.MarshalBatchPut(entities)
	if err != nil {
		return err
	}

	for _, batch := range batches {
		out, err := s.client.BatchWriteItem(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to batch write: %w", err)
		}
		if out != nil && len(out.UnprocessedItems) > 0 {
			return fmt.Errorf("seed left %d unprocessed items", len(out.UnprocessedItems[s.table.TableName]))
		}
	}
	return nil
}

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	Port             int
	SkipIfNotRunning bool
	TablePrefix      string
	CleanupTimeout   time.Duration
}

// DefaultIntegrationTestConfig returns a default configuration for integration tests.
func DefaultIntegrationTestConfig() *IntegrationTestConfig {
	return &IntegrationTestConfig{
		Port:             DefaultLocalPort,
		SkipIfNotRunning: true,
		TablePrefix:      "integration-test",
		CleanupTimeout:   30 * time.Second,
	}
}

// RunIntegrationTest runs fn against a store on a new table in DynamoDB
// Local, deleting the table afterwards.
func RunIntegrationTest(t *testing.T, config *IntegrationTestConfig, fn func(local *LocalDynamoDB, store *hangoutstore.Store)) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	if config == nil {
		config = DefaultIntegrationTestConfig()
	}

	local := NewLocalDynamoDB(config.Port)
	ctx := context.Background()

	if !local.IsAvailable(ctx) {
		if config.SkipIfNotRunning {
			t.Skipf("DynamoDB Local not available on port %d", config.Port)
		} else {
			t.Fatalf("DynamoDB Local not available on port %d", config.Port)
		}
	}

	table := hangoutstore.NewTable(NewTestTable(config.TablePrefix))
	if err := local.CreateHangoutTable(ctx, table); err != nil {
		t.Fatalf("Failed to create test table %s: %v", table.TableName, err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), config.CleanupTimeout)
		defer cancel()

		if err := local.DeleteTable(cleanupCtx, table.TableName); err != nil {
			t.Errorf("Failed to cleanup table %s: %v", table.TableName, err)
		}
	}()

	fn(local, hangoutstore.NewStore(local.Client, table))
}
