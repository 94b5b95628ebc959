package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"

	"github.com/pior/redis"
)

type operationType string

const (
	cacheHit  operationType = "cache-hit"
	cacheMiss operationType = "cache-miss"
	setValue  operationType = "set"
	increment operationType = "increment"
	pipeline  operationType = "pipeline"
	all       operationType = "all"
)

type benchmarkResult struct {
	Operation    operationType
	Duration     time.Duration
	TotalOps     int64
	Successes    int64
	Failures     int64
	AvgLatency   time.Duration
	OpsPerSecond float64
	Correctness  bool
	ErrorMessage string
}

// operation runs one unit of work for a worker.
type operation func(ctx context.Context, worker int, seq int) error

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run load against the server and report throughput",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		op, _ := cmd.Flags().GetString("operation")
		duration, _ := cmd.Flags().GetDuration("duration")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		showMetrics, _ := cmd.Flags().GetBool("metrics")
		out := cmd.OutOrStdout()

		set := metrics.NewSet()
		redis.RegisterMetrics(set, client)

		if err := client.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("server not reachable at %s: %w", client.Address(), err)
		}

		ops := []operationType{operationType(op)}
		if operationType(op) == all {
			ops = []operationType{cacheHit, cacheMiss, setValue, increment, pipeline}
		}

		for _, o := range ops {
			fmt.Fprintf(out, "--- Running %s benchmark ---\n", o)
			printResult(out, runOperation(cmd.Context(), o, duration, concurrency))
		}

		if showMetrics {
			set.WritePrometheus(out)
		}
		return nil
	},
}

func init() {
	benchCmd.Flags().String("operation", string(all), "cache-hit, cache-miss, set, increment, pipeline or all")
	benchCmd.Flags().Duration("duration", 5*time.Second, "duration of each benchmark")
	benchCmd.Flags().Int("concurrency", 8, "number of concurrent workers")
	benchCmd.Flags().Bool("metrics", false, "print client metrics in Prometheus format at the end")
}

func runOperation(ctx context.Context, op operationType, duration time.Duration, concurrency int) *benchmarkResult {
	result := &benchmarkResult{Operation: op, Correctness: true}
	value := []byte("bench-value")

	var fn operation
	var verify func() error

	switch op {
	case cacheHit:
		if err := client.Set(ctx, redis.Item{Key: "bench:hit", Value: value, TTL: time.Hour}); err != nil {
			result.Correctness = false
			result.ErrorMessage = fmt.Sprintf("failed to set initial value: %v", err)
			return result
		}
		fn = func(ctx context.Context, worker, seq int) error {
			item, err := client.Get(ctx, "bench:hit")
			if err != nil {
				return err
			}
			if !item.Found || string(item.Value) != string(value) {
				return fmt.Errorf("value mismatch")
			}
			return nil
		}

	case cacheMiss:
		fn = func(ctx context.Context, worker, seq int) error {
			item, err := client.Get(ctx, "bench:miss:"+strconv.Itoa(worker)+":"+strconv.Itoa(seq))
			if err != nil {
				return err
			}
			if item.Found {
				return fmt.Errorf("unexpected hit")
			}
			return nil
		}

	case setValue:
		fn = func(ctx context.Context, worker, seq int) error {
			return client.Set(ctx, redis.Item{Key: "bench:set:" + strconv.Itoa(worker), Value: value, TTL: time.Minute})
		}

	case increment:
		key := "bench:counter:" + strconv.FormatInt(time.Now().UnixNano(), 36)
		var done atomic.Int64
		fn = func(ctx context.Context, worker, seq int) error {
			if _, err := client.Increment(ctx, key, 1); err != nil {
				return err
			}
			done.Add(1)
			return nil
		}
		verify = func() error {
			item, err := client.Get(ctx, key)
			if err != nil {
				return err
			}
			if got := string(item.Value); got != strconv.FormatInt(done.Load(), 10) {
				return fmt.Errorf("counter is %s, want %d", got, done.Load())
			}
			_, err = client.Delete(ctx, key)
			return err
		}

	case pipeline:
		fn = func(ctx context.Context, worker, seq int) error {
			key := "bench:pipeline:" + strconv.Itoa(worker)
			p := client.Pipeline()
			redis.Queue(p, redis.Set(key, value, time.Minute))
			get := redis.Queue(p, redis.Get(key))
			redis.Queue(p, redis.Incr(key+":n"))
			if err := p.Exec(ctx); err != nil {
				return err
			}
			v, err := get.Result()
			if err != nil {
				return err
			}
			if string(v.Value) != string(value) {
				return fmt.Errorf("value mismatch")
			}
			return nil
		}

	default:
		result.Correctness = false
		result.ErrorMessage = fmt.Sprintf("unknown operation: %s", op)
		return result
	}

	var totalOps, successes, failures, totalLatency atomic.Int64
	var firstErr atomic.Value

	startTime := time.Now()
	var wg sync.WaitGroup
	for w := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := 0; time.Since(startTime) < duration; seq++ {
				opStart := time.Now()
				err := fn(ctx, w, seq)
				totalLatency.Add(int64(time.Since(opStart)))
				totalOps.Add(1)
				if err != nil {
					failures.Add(1)
					firstErr.CompareAndSwap(nil, err.Error())
					continue
				}
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	result.Duration = time.Since(startTime)
	result.TotalOps = totalOps.Load()
	result.Successes = successes.Load()
	result.Failures = failures.Load()
	if result.TotalOps > 0 {
		result.AvgLatency = time.Duration(totalLatency.Load() / result.TotalOps)
		result.OpsPerSecond = float64(result.TotalOps) / result.Duration.Seconds()
	}
	if msg, ok := firstErr.Load().(string); ok {
		result.ErrorMessage = msg
	}
	if verify != nil {
		if err := verify(); err != nil {
			result.Correctness = false
			result.ErrorMessage = err.Error()
		}
	}
	return result
}

func printResult(w io.Writer, result *benchmarkResult) {
	fmt.Fprintf(w, "Operation: %s\n", result.Operation)
	fmt.Fprintf(w, "Duration: %v\n", result.Duration)
	fmt.Fprintf(w, "Total Operations: %d\n", result.TotalOps)
	fmt.Fprintf(w, "Successes: %d\n", result.Successes)
	fmt.Fprintf(w, "Failures: %d\n", result.Failures)
	if result.TotalOps > 0 {
		fmt.Fprintf(w, "Success Rate: %.2f%%\n", float64(result.Successes)/float64(result.TotalOps)*100)
		fmt.Fprintf(w, "Ops/sec: %.2f\n", result.OpsPerSecond)
		fmt.Fprintf(w, "Avg Latency: %v\n", result.AvgLatency)
	}
	fmt.Fprintf(w, "Correctness: %t\n", result.Correctness)
	if result.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n", result.ErrorMessage)
	}
	fmt.Fprintln(w)
}
