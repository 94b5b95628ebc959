package redis

import (
	"context"
	"errors"

	"github.com/pior/redis/resp"
)

var ErrPipelineNotExecuted = errors.New("redis: pipeline not executed")

// Pipeline collects commands and sends them together on one connection.
//
//	p := client.Pipeline()
//	hits := redis.Queue(p, redis.Incr("hits"))
//	user := redis.Queue(p, redis.HGetAll("user:1"))
//	if err := p.Exec(ctx); err != nil {
//	    return err
//	}
//	n, err := hits.Result()
//
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	executor Executor
	cmds     []Cmd
	results  []pipelineResult
}

type pipelineResult interface {
	set(f resp.Frame)
	fail(err error)
}

// Result is the future result of a queued command.
type Result[T any] struct {
	cmd   *Command[T]
	value T
	err   error
	done  bool
}

// Result returns the parsed reply, or ErrPipelineNotExecuted before Exec
// returned.
func (r *Result[T]) Result() (T, error) {
	if !r.done {
		var zero T
		return zero, ErrPipelineNotExecuted
	}
	return r.value, r.err
}

func (r *Result[T]) set(f resp.Frame) {
	r.value, r.err = r.cmd.Parse(f)
	r.done = true
}

func (r *Result[T]) fail(err error) {
	r.err = err
	r.done = true
}

func NewPipeline(executor Executor) *Pipeline {
	return &Pipeline{executor: executor}
}

// Queue adds cmd to p and returns the handle of its result.
func Queue[T any](p *Pipeline, cmd *Command[T]) *Result[T] {
	r := &Result[T]{cmd: cmd}
	p.cmds = append(p.cmds, cmd)
	p.results = append(p.results, r)
	return r
}

// Len returns the number of queued commands.
func (p *Pipeline) Len() int {
	return len(p.cmds)
}

// Exec sends the queued commands and resolves their results, in queue order.
// The pipeline is empty afterwards and can be reused.
//
// The returned error covers the batch as a whole (pool, transport or
// protocol); every result then carries that same error. Per-command failures,
// like error replies, are only reported by the command's Result.
func (p *Pipeline) Exec(ctx context.Context) error {
	cmds, results := p.cmds, p.results
	p.cmds, p.results = nil, nil

	if len(cmds) == 0 {
		return nil
	}

	frames, err := p.executor.ExecuteBatch(ctx, cmds)
	if err != nil {
		for _, r := range results {
			r.fail(err)
		}
		return err
	}

	for i, r := range results {
		r.set(frames[i])
	}
	return nil
}
