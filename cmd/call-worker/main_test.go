package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	appconfig "github.com/wolfman30/career-coach/internal/config"
)

func TestValidate(t *testing.T) {
	good := appconfig.Config{
		CallQueueURL: "https://sqs.us-east-1.amazonaws.com/123/calls",
		CallSignals:  "redis",
		CallStore:    "dynamodb",
	}
	assert.NoError(t, validate(&good))

	cases := map[string]func(c *appconfig.Config){
		"memory queue":   func(c *appconfig.Config) { c.UseMemoryQueue = true },
		"no queue url":   func(c *appconfig.Config) { c.CallQueueURL = "" },
		"memory signals": func(c *appconfig.Config) { c.CallSignals = "memory" },
		"memory store":   func(c *appconfig.Config) { c.CallStore = "memory" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := good
			mutate(&cfg)
			assert.Error(t, validate(&cfg))
		})
	}
}

func TestOpsRouter(t *testing.T) {
	h := opsRouter(prometheus.NewRegistry())
	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
