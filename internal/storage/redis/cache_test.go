package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"mailroom/backend/internal/config"
	"mailroom/backend/internal/domain"
	"mailroom/backend/internal/storage"
)

// newTestCache 启动一次性 Redis 容器。
// 需要本机 Docker，-short 模式下跳过。
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable, skipping: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := New(&config.RedisConfig{Address: endpoint}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client)
}

func TestCache_ScanSessionRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	session := &domain.ScanSession{
		ID:         "session-1",
		OperatorID: "op-1",
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		ExpiresAt:  time.Now().UTC().Add(4 * time.Hour).Truncate(time.Second),
	}

	t.Run("保存后可按会话与操作员读取", func(t *testing.T) {
		require.NoError(t, cache.SaveScanSession(session, time.Hour))

		got, err := cache.GetScanSession("session-1")
		require.NoError(t, err)
		assert.Equal(t, "op-1", got.OperatorID)

		byOp, err := cache.GetScanSessionByOperator("op-1")
		require.NoError(t, err)
		assert.Equal(t, "session-1", byOp.ID)
	})

	t.Run("重复保存覆盖旧值", func(t *testing.T) {
		session.ResumeNotified = true
		require.NoError(t, cache.SaveScanSession(session, time.Hour))

		got, err := cache.GetScanSession("session-1")
		require.NoError(t, err)
		assert.True(t, got.ResumeNotified)
	})

	t.Run("删除会话连带清理操作员索引", func(t *testing.T) {
		require.NoError(t, cache.DeleteScanSession("session-1"))

		_, err := cache.GetScanSession("session-1")
		assert.ErrorIs(t, err, storage.ErrScanSessionNotFound)
		_, err = cache.GetScanSessionByOperator("op-1")
		assert.ErrorIs(t, err, storage.ErrScanSessionNotFound)
	})

	t.Run("不存在的会话返回未找到", func(t *testing.T) {
		_, err := cache.GetScanSession("no-such-session")
		assert.ErrorIs(t, err, storage.ErrScanSessionNotFound)
	})
}

func TestCache_Blacklist(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.AddToBlacklist("jti-1", time.Hour))

	listed, err := cache.IsBlacklisted("jti-1")
	require.NoError(t, err)
	assert.True(t, listed)

	listed, err = cache.IsBlacklisted("jti-2")
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestCache_RateLimit(t *testing.T) {
	cache := newTestCache(t)

	for i := int64(1); i <= 3; i++ {
		count, err := cache.IncrementRateLimit("notify:contact-1", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	count, err := cache.GetRateLimit("notify:contact-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = cache.GetRateLimit("notify:contact-2")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, cache.DeleteRateLimit("notify:contact-1"))
	count, err = cache.GetRateLimit("notify:contact-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
