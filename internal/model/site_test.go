package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSiteRootURL(t *testing.T) {
	tests := []struct {
		hostname string
		port     int
		want     string
	}{
		{"example.com", 80, "http://example.com"},
		{"example.com", 443, "https://example.com"},
		{"example.com", 8000, "http://example.com:8000"},
	}

	for _, tt := range tests {
		s := &Site{Hostname: tt.hostname, Port: tt.port}
		assert.Equal(t, tt.want, s.RootURL())
	}
}

func TestSiteString(t *testing.T) {
	assert.Equal(t, "My Site", (&Site{SiteName: "My Site", Hostname: "example.com", Port: 80}).String())
	assert.Equal(t, "example.com", (&Site{Hostname: "example.com", Port: 80}).String())
	assert.Equal(t, "example.com:8000", (&Site{Hostname: "example.com", Port: 8000}).String())
}

func TestSiteBeforeSaveLowercasesHostname(t *testing.T) {
	s := &Site{Hostname: "EXAMPLE.com"}
	assert.NoError(t, s.BeforeSave(nil))
	assert.Equal(t, "example.com", s.Hostname)
}
