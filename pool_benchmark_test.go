package redis

import (
	"context"
	"testing"

	"github.com/pior/redis/internal/testutils"
)

func benchConstructor(ctx context.Context) (*Connection, error) {
	return NewConnection(testutils.NewConnectionMock(), ConnectionConfig{}), nil
}

// BenchmarkPool_Acquire_Creation benchmarks acquiring a connection when pool is empty (creation path)
func BenchmarkPool_Acquire_Creation(b *testing.B) {
	for _, pf := range poolFactories {
		b.Run(pf.name, func(b *testing.B) {
			ctx := context.Background()

			for b.Loop() {
				pool, err := pf.factory(benchConstructor, 1)
				if err != nil {
					b.Fatal(err)
				}

				res, err := pool.Acquire(ctx)
				if err != nil {
					b.Fatal(err)
				}

				res.Destroy()
				pool.Close()
			}
		})
	}
}

// BenchmarkPool_Acquire_FastPath benchmarks acquiring a connection from idle pool (fast path)
func BenchmarkPool_Acquire_FastPath(b *testing.B) {
	for _, pf := range poolFactories {
		b.Run(pf.name, func(b *testing.B) {
			ctx := context.Background()

			pool, err := pf.factory(benchConstructor, 1)
			if err != nil {
				b.Fatal(err)
			}
			defer pool.Close()

			res, err := pool.Acquire(ctx)
			if err != nil {
				b.Fatal(err)
			}
			res.Release()

			for b.Loop() {
				res, err := pool.Acquire(ctx)
				if err != nil {
					b.Fatal(err)
				}
				res.Release()
			}
		})
	}
}

// BenchmarkPool_Acquire_Contended benchmarks many goroutines sharing few connections.
func BenchmarkPool_Acquire_Contended(b *testing.B) {
	for _, pf := range poolFactories {
		b.Run(pf.name, func(b *testing.B) {
			ctx := context.Background()

			pool, err := pf.factory(benchConstructor, 4)
			if err != nil {
				b.Fatal(err)
			}
			defer pool.Close()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					res, err := pool.Acquire(ctx)
					if err != nil {
						b.Error(err)
						return
					}
					res.Release()
				}
			})
		})
	}
}

func BenchmarkClient_Get(b *testing.B) {
	kv := testutils.NewKV()
	server := testutils.NewServer(b, kv.Handle)

	for _, pf := range poolFactories {
		b.Run(pf.name, func(b *testing.B) {
			client, err := NewClient(server.Addr, Config{Pool: pf.factory})
			if err != nil {
				b.Fatal(err)
			}
			defer client.Close()

			ctx := context.Background()
			if err := client.Set(ctx, Item{Key: "bench", Value: []byte("value")}); err != nil {
				b.Fatal(err)
			}

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := client.Get(ctx, "bench"); err != nil {
						b.Error(err)
						return
					}
				}
			})
		})
	}
}
