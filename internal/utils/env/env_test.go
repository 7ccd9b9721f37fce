package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/EdgeApp/libforge/internal/utils/env"
)

func TestMergeMaps(t *testing.T) {
	tests := map[string]struct {
		base     map[string]string
		override map[string]string
		expEnv   map[string]string
	}{
		"Override entries should win over base entries": {
			base:     map[string]string{"CFLAGS": "-O0", "PATH": "/usr/bin"},
			override: map[string]string{"CFLAGS": "-O2"},
			expEnv:   map[string]string{"CFLAGS": "-O2", "PATH": "/usr/bin"},
		},
		"Nil maps should merge to an empty map": {
			expEnv: map[string]string{},
		},
		"A nil base should take the override entries": {
			override: map[string]string{"CFLAGS": "-O2"},
			expEnv:   map[string]string{"CFLAGS": "-O2"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expEnv, env.MergeMaps(tc.base, tc.override))
		})
	}
}

func TestFromList(t *testing.T) {
	tests := map[string]struct {
		list   []string
		expEnv map[string]string
	}{
		"KEY=VALUE entries should convert": {
			list:   []string{"PATH=/usr/bin", "HOME=/root"},
			expEnv: map[string]string{"PATH": "/usr/bin", "HOME": "/root"},
		},
		"Values may contain '='": {
			list:   []string{"LDFLAGS=-Wl,-rpath=/opt/lib"},
			expEnv: map[string]string{"LDFLAGS": "-Wl,-rpath=/opt/lib"},
		},
		"Entries without '=' should be skipped": {
			list:   []string{"GARBAGE", "PATH=/usr/bin"},
			expEnv: map[string]string{"PATH": "/usr/bin"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expEnv, env.FromList(tc.list))
		})
	}
}
