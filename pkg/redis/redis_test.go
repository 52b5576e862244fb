package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/kelmah/review-verification/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Country string `json:"country"`
}

func TestRedisConfig_RedisAddr(t *testing.T) {
	cfg := config.RedisConfig{Host: "redis.example.com", Port: "6380"}
	assert.Equal(t, "redis.example.com:6380", cfg.RedisAddr())
}

func TestClient_SetJSON(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectSet("ip:1.2.3.4", []byte(`{"country":"GH"}`), time.Hour).SetVal("OK")

	err := client.SetJSON(context.Background(), "ip:1.2.3.4", payload{Country: "GH"}, time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_GetJSON(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectGet("ip:1.2.3.4").SetVal(`{"country":"GH"}`)

	var got payload
	require.NoError(t, client.GetJSON(context.Background(), "ip:1.2.3.4", &got))
	assert.Equal(t, "GH", got.Country)
}

func TestClient_GetJSON_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectGet("ip:9.9.9.9").RedisNil()

	var got payload
	err := client.GetJSON(context.Background(), "ip:9.9.9.9", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestClient_GetJSON_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &Client{Client: db}

	mock.ExpectGet("ip:9.9.9.9").SetErr(errors.New("timeout"))

	var got payload
	err := client.GetJSON(context.Background(), "ip:9.9.9.9", &got)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))
}
