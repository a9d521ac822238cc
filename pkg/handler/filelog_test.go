package handler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srcdstools/srcwatch/pkg/logparse"
)

func TestFileLogWritesAndClosesOnSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	h, err := Build("filelog", Deps{}, Options{"path": path})
	require.NoError(t, err)

	ts := time.Date(2016, 11, 20, 13, 5, 40, 0, time.Local)
	h(logparse.Record{Timestamp: ts, Message: []byte(`World triggered "Round_Start"`)})
	h(logparse.Record{Timestamp: ts.Add(time.Second), Message: []byte("second line")})
	h(logparse.Record{}) // end of stream

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"2016-11-20 13:05:40: World triggered \"Round_Start\"\n"+
			"2016-11-20 13:05:41: second line\n",
		string(data))
}

func TestFileLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte("existing\n"), 0644))

	h, err := Build("filelog", Deps{}, Options{"path": path})
	require.NoError(t, err)

	h(logparse.Record{Timestamp: time.Date(2020, 1, 2, 3, 4, 5, 0, time.Local), Message: []byte("new")})
	h(logparse.Record{})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing\n2020-01-02 03:04:05: new\n", string(data))
}
