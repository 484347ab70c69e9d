package log_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stsync/pkg/log"
)

func TestCreateHandlerWithStrings(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		level    string
		format   string
		err      error
		contains string
		debug    bool
	}{
		"text": {
			level:    "info",
			format:   "text",
			contains: "hello",
		},
		"logfmt": {
			level:    "debug",
			format:   "logfmt",
			contains: "msg=hello",
			debug:    true,
		},
		"json": {
			level:    "warning",
			format:   "JSON",
			contains: `"msg":"hello"`,
		},
		"defaults": {
			contains: "hello",
		},
		"invalid level": {
			level:  "loud",
			format: "text",
			err:    log.ErrInvalidLevel,
		},
		"invalid format": {
			level:  "info",
			format: "xml",
			err:    log.ErrInvalidFormat,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			h, err := log.CreateHandlerWithStrings(&buf, tc.level, tc.format)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				return
			}

			require.NoError(t, err)

			logger := slog.New(h)
			logger.Error("hello", slog.String("k", "v"))
			assert.Contains(t, buf.String(), tc.contains)

			buf.Reset()
			logger.Debug("quiet")
			assert.Equal(t, tc.debug, buf.Len() > 0)
		})
	}
}
