package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/erazemk/knjiznica/internal/store"
	"github.com/erazemk/knjiznica/internal/store/storetest"
)

// MONGO_TEST_URL points the contract tests at a disposable server,
// e.g. mongodb://localhost:27017.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URL")
	if uri == "" {
		t.Skip("MONGO_TEST_URL not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		dbName := fmt.Sprintf("knjiznica_test_%s", primitive.NewObjectID().Hex())
		s, err := Connect(ctx, uri, dbName)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.Drop(context.Background())
			_ = s.Close()
		})
		return s
	})
}

func TestValidID(t *testing.T) {
	s := &MongoStore{}

	assert.True(t, s.ValidID("64b7f1c2a9e4d3b2c1a09f8e"))
	assert.True(t, s.ValidID(primitive.NewObjectID().Hex()))
	assert.False(t, s.ValidID(""))
	assert.False(t, s.ValidID("abc123"))
	assert.False(t, s.ValidID("64b7f1c2a9e4d3b2c1a09f8z"))
	assert.False(t, s.ValidID("42"))
}
