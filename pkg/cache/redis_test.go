package cache

import (
	"testing"

	"account-service/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedis(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := InitRedis(utils.RedisConfig{Addr: server.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, server.Addr(), client.Options().Addr)
}

func TestInitRedisUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	addr := server.Addr()
	server.Close()

	_, err := InitRedis(utils.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
