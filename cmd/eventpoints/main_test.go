package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"eventpoints/internal/config"
)

func TestKioskURL(t *testing.T) {
	tests := []struct {
		listen, kiosk, want string
	}{
		{"127.0.0.1:8080", "", "http://127.0.0.1:8080/kiosk"},
		{":9000", "", "http://127.0.0.1:9000/kiosk"},
		{"0.0.0.0:80", "", "http://127.0.0.1:80/kiosk"},
		{"[::1]:8080", "", "http://[::1]:8080/kiosk"},
		{":9000", "https://checkin.example.edu/kiosk", "https://checkin.example.edu/kiosk"},
	}
	for _, tt := range tests {
		conf := config.DefaultConfig()
		conf.Listen = tt.listen
		conf.KioskURL = tt.kiosk
		assert.Equal(t, tt.want, kioskURL(conf), tt.listen)
	}
}
