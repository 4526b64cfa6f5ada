package dynamock

import (
	"context"
	"testing"
	"time"

	"github.com/nisimpson/hangoutstore"
)

func TestNewLocalDynamoDB(t *testing.T) {
	local := NewLocalDynamoDB(8000)

	if local.Client == nil {
		t.Error("Client is nil")
	}
	if local.Endpoint != "http://localhost:8000" {
		t.Errorf("expected endpoint http://localhost:8000, got %s", local.Endpoint)
	}
	if local.Port != 8000 {
		t.Errorf("expected port 8000, got %d", local.Port)
	}
}

func TestNewDefaultLocalDynamoDB(t *testing.T) {
	if client := NewDefaultLocalClient(); client == nil {
		t.Fatal("NewDefaultLocalClient returned nil")
	}

	local := NewDefaultLocalDynamoDB()
	if local.Port != DefaultLocalPort {
		t.Errorf("expected port %d, got %d", DefaultLocalPort, local.Port)
	}
}

func TestLocalDynamoDB_Unavailable(t *testing.T) {
	local := NewLocalDynamoDB(9999)
	ctx := context.Background()

	if local.IsAvailable(ctx) {
		t.Error("expected IsAvailable to return false for unused port")
	}
	if err := local.WaitForAvailable(ctx, time.Second); err == nil {
		t.Error("expected WaitForAvailable to time out")
	}
}

func hasTable(t *testing.T, local *LocalDynamoDB, name string) bool {
	t.Helper()
	tables, err := local.ListTables(context.Background())
	if err != nil {
		t.Fatalf("failed to list tables: %v", err)
	}
	for _, table := range tables {
		if table == name {
			return true
		}
	}
	return false
}

// Skipped unless DynamoDB Local is listening on the default port.
func TestTableManager_Integration(t *testing.T) {
	WithDefaultLocalDynamoDB(t, func(local *LocalDynamoDB) {
		ctx := context.Background()
		tm := NewTableManager(local.Client)

		first := hangoutstore.NewTable(NewTestTable("manager-a"))
		second := hangoutstore.NewTable(NewTestTable("manager-b"))
		for _, table := range []*hangoutstore.Table{first, second} {
			if err := tm.CreateTestTable(ctx, table); err != nil {
				t.Fatalf("failed to create %s: %v", table.TableName, err)
			}
		}

		names := tm.GetTableNames()
		if len(names) != 2 || names[0] != first.TableName || names[1] != second.TableName {
			t.Fatalf("unexpected managed tables %v", names)
		}
		if !hasTable(t, local, first.TableName) || !hasTable(t, local, second.TableName) {
			t.Fatal("managed tables are missing from the table list")
		}

		if err := tm.Cleanup(ctx); err != nil {
			t.Fatalf("cleanup failed: %v", err)
		}
		if names := tm.GetTableNames(); len(names) != 0 {
			t.Errorf("expected no managed tables after cleanup, got %v", names)
		}
		if hasTable(t, local, first.TableName) || hasTable(t, local, second.TableName) {
			t.Error("cleanup left tables behind")
		}
		if err := local.WaitForTableDeleted(ctx, first.TableName, time.Second); err != nil {
			t.Errorf("deleted table still reported: %v", err)
		}
	})
}

// Skipped unless DynamoDB Local is listening on the default port.
func TestWithIsolatedTable_Integration(t *testing.T) {
	WithDefaultLocalDynamoDB(t, func(local *LocalDynamoDB) {
		ctx := context.Background()
		var tableName string

		WithIsolatedTable(t, local.Client, func(store *hangoutstore.Store) {
			tableName = store.Table().TableName
			if !hasTable(t, local, tableName) {
				t.Fatalf("table %s was not created", tableName)
			}

			if err := store.Save(ctx, NewPoll("h1", "p1", "o1")); err != nil {
				t.Fatalf("save failed: %v", err)
			}
			poll, err := hangoutstore.Find[hangoutstore.Poll](ctx, store, hangoutstore.EventPK("h1"), hangoutstore.PollSK("p1"))
			if err != nil {
				t.Fatalf("find failed: %v", err)
			}
			if len(poll.Options) != 1 {
				t.Errorf("unexpected poll %+v", poll)
			}
		})

		if hasTable(t, local, tableName) {
			t.Errorf("isolated table %s outlived the test", tableName)
		}
	})
}
