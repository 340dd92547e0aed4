package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
)

func TestLevelOption(t *testing.T) {
	tests := []struct {
		name      string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{name: "debug", wantDebug: true, wantInfo: true, wantWarn: true},
		{name: "info", wantInfo: true, wantWarn: true},
		{name: "warn", wantWarn: true},
		{name: "error"},
		{name: "unknown", wantInfo: true, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := level.NewFilter(log.NewLogfmtLogger(&buf), levelOption(tt.name))

			level.Debug(logger).Log("msg", "d")
			level.Info(logger).Log("msg", "i")
			level.Warn(logger).Log("msg", "w")
			level.Error(logger).Log("msg", "e")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "msg=d"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "msg=i"))
			assert.Equal(t, tt.wantWarn, strings.Contains(out, "msg=w"))
			assert.Contains(t, out, "msg=e")
		})
	}
}

func TestIsTermination(t *testing.T) {
	assert.True(t, isTermination(fmt.Errorf("%w: interrupt", errSignalReceived)))
	assert.True(t, isTermination(context.Canceled))
	assert.False(t, isTermination(errors.New("listen and serve error: address in use")))
}
