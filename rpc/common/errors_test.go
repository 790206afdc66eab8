package common

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseError(t *testing.T) {
	testCases := []struct {
		name string
		msg  string
		code RetCode // 0 = plain error
	}{
		{"NoSession", NewError(RetCNoSession, "send hello first").Error(), RetCNoSession},
		{"InvalidOperation", NewError(RetCInvalidOperation, "lock id must not be empty").Error(), RetCInvalidOperation},
		{"Internal", NewError(RetCInternalError, "boom").Error(), RetCInternalError},
		{"Plain", "something went wrong", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ParseError(tc.msg)
			if err == nil {
				t.Fatalf("Expected error")
			}
			if err.Error() != tc.msg {
				t.Errorf("Expected message %q, got %q", tc.msg, err.Error())
			}

			var e *Error
			if tc.code == 0 {
				if errors.As(err, &e) {
					t.Errorf("Expected plain error, got code %s", e.Code)
				}
				return
			}
			if !errors.Is(err, &Error{Code: tc.code}) {
				t.Errorf("Expected code %s", tc.code)
			}
		})
	}

	if ParseError("") != nil {
		t.Errorf("Expected nil for empty message")
	}
	if !errors.Is(ParseError(NewError(RetCNoSession, "x").Error()), ErrNoSession) {
		t.Errorf("Expected ErrNoSession to match")
	}
}

func TestConfigString(t *testing.T) {
	server := ServerConfig{TimeoutSecond: 5, LogLevel: "info"}
	server.Transport.Endpoint = "0.0.0.0:5252"
	server.Storage.GracePeriod = time.Minute

	out := server.String()
	for _, expected := range []string{"0.0.0.0:5252", "1m0s", "disabled", "unlimited"} {
		if !strings.Contains(out, expected) {
			t.Errorf("Expected server config to contain %q:\n%s", expected, out)
		}
	}

	client := ClientConfig{ClientID: "worker-1"}
	client.Transport.Endpoints = []string{"localhost:5252"}
	out = client.String()
	for _, expected := range []string{"worker-1", "localhost:5252"} {
		if !strings.Contains(out, expected) {
			t.Errorf("Expected client config to contain %q:\n%s", expected, out)
		}
	}
}
