package redis_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/pior/redis"
	"github.com/pior/redis/resp"
)

func Example() {
	client, err := redis.NewClient("localhost:6379", redis.Config{
		MaxSize:        16,
		AcquireTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()

	err = client.Set(ctx, redis.Item{Key: "greeting", Value: []byte("hello"), TTL: time.Hour})
	if err != nil {
		log.Printf("Set failed: %v", err)
		return
	}

	item, err := client.Get(ctx, "greeting")
	if err != nil {
		log.Printf("Get failed: %v", err)
		return
	}
	if item.Found {
		fmt.Printf("Got value: %s\n", item.Value)
	}
}

// Any command can be built from its name, arguments and the parser of its
// reply.
func ExampleDo() {
	client, err := redis.NewClient("localhost:6379", redis.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	ttl := redis.MustCommand(resp.ParseInt64, "TTL", "session:42")

	seconds, err := redis.Do(context.Background(), client, ttl)
	switch {
	case resp.IsServerError(err):
		log.Printf("server refused: %v", err)
	case err != nil:
		log.Printf("request failed: %v", err)
	default:
		fmt.Printf("expires in %ds\n", seconds)
	}
}

func ExamplePipeline() {
	client, err := redis.NewClient("localhost:6379", redis.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	p := client.Pipeline()
	visits := redis.Queue(p, redis.Incr("visits"))
	names := redis.Queue(p, redis.MGet("user:1:name", "user:2:name"))

	if err := p.Exec(context.Background()); err != nil {
		log.Printf("pipeline failed: %v", err)
		return
	}

	n, _ := visits.Result()
	fmt.Println("visits:", n)

	values, _ := names.Result()
	for _, v := range values {
		if v.Found {
			fmt.Println(v.Value)
		}
	}
}

func ExampleClient_Load() {
	client, err := redis.NewClient("localhost:6379", redis.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	type User struct {
		Name      string
		Age       int
		LastLogin time.Time `redis:"last_login"`
	}

	var user User
	found, err := client.Load(context.Background(), "user:1", &user)
	if err != nil {
		log.Printf("load failed: %v", err)
		return
	}
	if found {
		fmt.Printf("%s (%d)\n", user.Name, user.Age)
	}
}

func ExampleNewCircuitBreakerSettings() {
	client, err := redis.NewClient("localhost:6379", redis.Config{
		CircuitBreaker: redis.NewCircuitBreakerSettings(3, time.Minute, 10*time.Second),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	err = client.Ping(context.Background())
	if errors.Is(err, redis.ErrPoolExhausted) {
		log.Println("too many requests in flight")
	}

	fmt.Println("breaker:", client.PoolStats().CircuitBreakerState)
}

func ExampleRegisterMetrics() {
	client, err := redis.NewClient("localhost:6379", redis.Config{})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	set := metrics.NewSet()
	redis.RegisterMetrics(set, client)

	set.WritePrometheus(os.Stdout)
}
