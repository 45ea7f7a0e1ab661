//go:build integration

package mongo_test

import (
	"context"
	"os"
	"testing"

	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/spool/store"
	mongostore "github.com/xraph/spool/store/mongo"
	"github.com/xraph/spool/store/storetest"
)

func TestConformance(t *testing.T) {
	uri := os.Getenv("SPOOL_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SPOOL_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("spool_test")
	s := mongostore.New(db)
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()
		if err := db.Drop(ctx); err != nil {
			t.Fatalf("drop: %v", err)
		}
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		return s
	})
}
