package redis

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-vectorizer/pkg/config"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TV_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TV_TEST_REDIS_ADDR not set, skipping redis test")
	}
	c, err := NewClient(context.Background(), config.RedisConfig{
		Addr:      addr,
		PoolSize:  2,
		KeyPrefix: "vector-test:",
		VectorTTL: time.Minute,
	})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		c.FlushVectors(context.Background())
		c.Close()
	})
	return c
}

func TestKey(t *testing.T) {
	c := &Client{prefix: "vector:"}
	if got := c.Key(-12); got != "vector:-12" {
		t.Errorf("Key(-12) = %q", got)
	}
	if got := c.Key(7); got != "vector:7" {
		t.Errorf("Key(7) = %q", got)
	}
}

func TestPutGetVector(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	payload := []byte{0, 0, 0, 7, 0, 0, 0, 0}

	if err := c.PutVector(ctx, 7, payload); err != nil {
		t.Fatalf("PutVector: %v", err)
	}
	got, err := c.GetVector(ctx, 7)
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("GetVector = %x, want %x", got, payload)
	}

	missing, err := c.GetVector(ctx, 8)
	if err != nil || missing != nil {
		t.Errorf("GetVector(missing) = %x, %v", missing, err)
	}
}
