package sessionstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func TestRedisHashKey(t *testing.T) {
	tests := []struct {
		prefix, want string
	}{
		{"", "tab:v:t"},
		{"oraculo:session", "oraculo:session:tab:v:t"},
		{"oraculo:", "oraculo:tab:v:t"},
	}
	for _, tt := range tests {
		r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), tt.prefix, 0)
		if got := r.hashKey(TabNamespace("v", "t")); got != tt.want {
			t.Errorf("hashKey with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
		_ = r.Close()
	}
}

// TestRedisStore runs against a live server when ORACULO_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("ORACULO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ORACULO_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, RedisConfig{Addr: addr, Prefix: "oraculo-test-" + time.Now().Format("150405.000"), TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer r.Close()

	ns := DeviceNamespace("anon_test")
	bag := NewBag(r, ns)
	if err := bag.SetInt(ctx, "count", 3); err != nil {
		t.Fatal(err)
	}
	if n, ok, err := bag.Int(ctx, "count"); err != nil || !ok || n != 3 {
		t.Fatalf("Int() = %d, %v, %v", n, ok, err)
	}
	if err := r.Delete(ctx, ns); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := r.Get(ctx, ns, "count"); ok {
		t.Error("namespace survived Delete")
	}
}
