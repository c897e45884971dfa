package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(MapEnv{})
	require.NoError(t, err)

	assert.Equal(t, "8080", c.HTTPPort)
	assert.Equal(t, StoreMemory, c.StoreDriver)
	assert.Equal(t, QueueMemory, c.QueueDriver)
	assert.Equal(t, RendererExec, c.RendererMode)
	assert.Equal(t, 2, c.WorkerCount)
	assert.Equal(t, 3*time.Minute, c.RenderTimeout)
	assert.Equal(t, "localfs", c.StorageProvider)
	assert.False(t, c.RetentionEnabled)
	assert.Equal(t, 24*time.Hour, c.RetentionTTL)
	assert.Nil(t, c.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	c, err := Load(MapEnv{
		"HTTP_PORT":            "9090",
		"STORE_DRIVER":         "postgres",
		"DATABASE_URL":         "postgres://localhost/posterforge",
		"QUEUE_DRIVER":         "redis",
		"REDIS_ADDR":           "localhost:6379",
		"WORKER_COUNT":         "8",
		"RENDER_TIMEOUT":       "45s",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
	})
	require.NoError(t, err)

	assert.Equal(t, "9090", c.HTTPPort)
	assert.Equal(t, StorePostgres, c.StoreDriver)
	assert.Equal(t, QueueRedis, c.QueueDriver)
	assert.Equal(t, 8, c.WorkerCount)
	assert.Equal(t, 45*time.Second, c.RenderTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSAllowedOrigins)
}

func TestLoad_Rejections(t *testing.T) {
	cases := []struct {
		name string
		env  MapEnv
	}{
		{"unknown store driver", MapEnv{"STORE_DRIVER": "dynamo"}},
		{"postgres without url", MapEnv{"STORE_DRIVER": "postgres"}},
		{"unknown queue driver", MapEnv{"QUEUE_DRIVER": "kafka"}},
		{"redis without addr", MapEnv{"QUEUE_DRIVER": "redis"}},
		{"unknown renderer mode", MapEnv{"RENDERER_MODE": "grpc"}},
		{"http renderer without baseurl", MapEnv{"RENDERER_MODE": "http"}},
		{"zero workers", MapEnv{"WORKER_COUNT": "0"}},
		{"garbage worker count", MapEnv{"WORKER_COUNT": "many"}},
		{"negative timeout", MapEnv{"RENDER_TIMEOUT": "-10s"}},
		{"garbage timeout", MapEnv{"RENDER_TIMEOUT": "soon"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.env)
			assert.Error(t, err)
		})
	}
}

func TestMapEnv_TrimsAndFallsBack(t *testing.T) {
	env := MapEnv{"HTTP_PORT": "  9000  ", "LOG_LEVEL": "   "}
	assert.Equal(t, "9000", env.Get("HTTP_PORT", "8080"))
	assert.Equal(t, "info", env.Get("LOG_LEVEL", "info"))
	assert.Equal(t, "fallback", env.Get("MISSING", "fallback"))
}
