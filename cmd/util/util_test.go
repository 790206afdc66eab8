package util

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for i, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("Line %d is longer than %d characters: %q", i, Wrap, line)
		}
	}

	if WrapString("") != "" {
		t.Errorf("Expected empty string")
	}
}

func TestGetClientConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("transport-endpoints", "a:1,b:2")
	viper.Set("transport-write-buffer", 4)
	viper.Set("timeout", 3)

	config := GetClientConfig()
	if len(config.Transport.Endpoints) != 2 || config.Transport.Endpoints[1] != "b:2" {
		t.Errorf("Expected two endpoints, got %v", config.Transport.Endpoints)
	}
	if config.Transport.WriteBufferSize != 4*1024 {
		t.Errorf("Expected write buffer of 4096 bytes, got %d", config.Transport.WriteBufferSize)
	}
	if config.TimeoutSecond != 3 {
		t.Errorf("Expected timeout 3, got %d", config.TimeoutSecond)
	}

	// Without a client id every config gets a random one
	other := GetClientConfig()
	if config.ClientID == "" || config.ClientID == other.ClientID {
		t.Errorf("Expected distinct random client ids, got %q and %q", config.ClientID, other.ClientID)
	}

	viper.Set("client-id", "worker-1")
	if id := GetClientConfig().ClientID; id != "worker-1" {
		t.Errorf("Expected client id worker-1, got %q", id)
	}
}

func TestGetSerializerAndTransport(t *testing.T) {
	t.Cleanup(viper.Reset)

	for _, name := range []string{"json", "gob", "binary"} {
		viper.Set("serializer", name)
		if _, err := GetSerializer(); err != nil {
			t.Errorf("Expected serializer %s, got error %v", name, err)
		}
	}
	viper.Set("serializer", "xml")
	if _, err := GetSerializer(); err == nil {
		t.Errorf("Expected error for unknown serializer")
	}

	for _, name := range []string{"tcp", "unix"} {
		viper.Set("transport", name)
		if _, err := GetTransport(); err != nil {
			t.Errorf("Expected client transport %s, got error %v", name, err)
		}
		if _, err := GetServerTransport(); err != nil {
			t.Errorf("Expected server transport %s, got error %v", name, err)
		}
	}
	viper.Set("transport", "http")
	if _, err := GetTransport(); err == nil {
		t.Errorf("Expected error for unknown transport")
	}
}
