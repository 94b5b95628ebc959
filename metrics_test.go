package redis

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/redis/internal/testutils"
)

func TestRegisterMetrics(t *testing.T) {
	kv := testutils.NewKV()
	client, server := newTestClient(t, kv.Handle, Config{})
	ctx := context.Background()

	set := metrics.NewSet()
	RegisterMetrics(set, client)

	require.NoError(t, client.Ping(ctx))
	_, err := client.Get(ctx, "missing")
	require.NoError(t, err)

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	out := buf.String()

	label := fmt.Sprintf(`{addr=%q}`, server.Addr)
	assert.Contains(t, out, "redis_client_commands_total"+label+" 2\n")
	assert.Contains(t, out, "redis_client_gets_total"+label+" 1\n")
	assert.Contains(t, out, "redis_client_get_hits_total"+label+" 0\n")
	assert.Contains(t, out, "redis_pool_connections_idle"+label+" 1\n")
	assert.Contains(t, out, "redis_pool_connections_created"+label+" 1\n")
	assert.Contains(t, out, "redis_circuit_breaker_state"+label+" 0\n")
}
