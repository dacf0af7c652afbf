package server_test

import (
	"testing"
	"time"

	"provisioner/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		port    string
		wantErr bool
	}{
		{"Default", "8080", false},
		{"Lowest", "1", false},
		{"Highest", "65535", false},
		{"Zero", "0", true},
		{"TooHigh", "70000", true},
		{"NotANumber", "http", true},
		{"Empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := server.Config{Port: tt.port}.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Fiber(t *testing.T) {
	cfg := server.Config{ReadTimeoutSeconds: 5, WriteTimeoutSeconds: 60}.Fiber()
	assert.True(t, cfg.DisableStartupMessage)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.WriteTimeout)
}
