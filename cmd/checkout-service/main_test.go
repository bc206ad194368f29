package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupLogger_Level(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  log.Level
	}{
		{name: "default", value: "", want: log.InfoLevel},
		{name: "debug", value: "debug", want: log.DebugLevel},
		{name: "warn", value: "warn", want: log.WarnLevel},
		{name: "invalid keeps info", value: "chatty", want: log.InfoLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("CHECKOUT_LOG_LEVEL", tc.value)
			setupLogger()
			if got := log.GetLevel(); got != tc.want {
				t.Fatalf("expected level %s, got %s", tc.want, got)
			}
		})
	}
}
