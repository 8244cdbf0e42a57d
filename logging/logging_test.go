package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent_TagsComponentField(t *testing.T) {
	var buf bytes.Buffer
	orig := zlog.Logger
	defer func() { zlog.Logger = orig }()
	zlog.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)

	Component("joiner").Debug().Msg("hello")

	require.Contains(t, buf.String(), `"component":"joiner"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}
