package health

import (
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestDatabaseChecker_NilPool(t *testing.T) {
	err := DatabaseChecker(nil)()

	assert.EqualError(t, err, "database connection is nil")
}

func TestRedisChecker_NilClient(t *testing.T) {
	err := RedisChecker(nil)()

	assert.EqualError(t, err, "redis client is nil")
}

func TestRedisChecker_Healthy(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, RedisChecker(client)())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisChecker_Unhealthy(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(errors.New("connection refused"))

	assert.Error(t, RedisChecker(client)())
}
