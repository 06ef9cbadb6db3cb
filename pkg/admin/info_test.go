package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoField(t *testing.T) {
	info := "# Replication\r\nrole:slave\r\nmaster_host:redis-0\r\nmaster_port:6379\r\n"

	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "role", key: "role", want: "slave"},
		{name: "master host", key: "master_host", want: "redis-0"},
		{name: "missing key", key: "connected_clients", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, infoField(info, tt.key))
		})
	}

	t.Run("bare newlines", func(t *testing.T) {
		assert.Equal(t, "master", infoField("role:master\nconnected_slaves:2\n", "role"))
	})
}

func TestMasterInfoFlags(t *testing.T) {
	tests := []struct {
		name         string
		flags        string
		down         bool
		failingOver  bool
	}{
		{name: "healthy master", flags: "master"},
		{name: "subjectively down", flags: "master,s_down", down: true},
		{name: "objectively down", flags: "master,o_down,s_down", down: true},
		{
			name:        "failover running",
			flags:       "master,failover_in_progress",
			failingOver: true,
		},
		{name: "no flags", flags: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := masterInfoFromMap(map[string]string{
				"ip":    "redis-0",
				"port":  "6379",
				"flags": tt.flags,
			})
			assert.Equal(t, tt.down, info.Down())
			assert.Equal(t, tt.failingOver, info.FailoverInProgress())
			assert.Equal(t, "redis-0", info.IP)
		})
	}
}
