package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/ensemble/connector"
)

func TestPoolConfig(t *testing.T) {
	cfg := connector.Config{
		Driver:         "postgres",
		Host:           "db.internal",
		Port:           5433,
		Database:       "app",
		Username:       "svc",
		Password:       "secret",
		SSLMode:        "disable",
		ConnectTimeout: 3 * time.Second,
		Pool:           connector.PoolConfig{MaxOpen: 12, MaxIdle: 2, HealthCheckFreq: time.Minute},
	}

	poolCfg, err := PoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", poolCfg.ConnConfig.Host)
	assert.Equal(t, uint16(5433), poolCfg.ConnConfig.Port)
	assert.Equal(t, "app", poolCfg.ConnConfig.Database)
	assert.Equal(t, "svc", poolCfg.ConnConfig.User)
	assert.Equal(t, int32(12), poolCfg.MaxConns)
	assert.Equal(t, int32(2), poolCfg.MinConns)
	assert.Equal(t, time.Minute, poolCfg.HealthCheckPeriod)
	assert.Equal(t, 3*time.Second, poolCfg.ConnConfig.ConnectTimeout)

	_, err = PoolConfig(connector.Config{URL: "postgres://%zz"})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, connector.Providers(), "postgres")
	assert.Equal(t, "postgres", (&Provider{}).Dialect().Name())
}
