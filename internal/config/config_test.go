package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "http://localhost:11434/api/chat", cfg.UpstreamURL)
	require.Equal(t, "jakerains/jetsonv2", cfg.Model)
	require.False(t, cfg.BufferPartialLines)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "empty model", mutate: func(c *Config) { c.Model = "" }, errMsg: "model"},
		{name: "relative url", mutate: func(c *Config) { c.UpstreamURL = "/api/chat" }, errMsg: "http or https"},
		{name: "no host", mutate: func(c *Config) { c.UpstreamURL = "http:///api/chat" }, errMsg: "absolute"},
		{name: "bad scheme", mutate: func(c *Config) { c.UpstreamURL = "ftp://localhost/api" }, errMsg: "http or https"},
		{name: "negative timeout", mutate: func(c *Config) { c.StreamTimeout = -time.Second }, errMsg: "negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
