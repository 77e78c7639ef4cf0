package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarndb/common"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newFileName(ext string) string {
	id, err := uuid.NewUUID()
	common.PanicIfErr(err)
	return id.String() + ext
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := bytes.Buffer{}
	err := run(args, &out)
	return out.String(), err
}

func TestRun(t *testing.T) {
	t.Run("put get and del should work on a new file", func(t *testing.T) {
		path := newFileName(".idx")
		defer common.Remove(path)

		for _, pk := range []string{"2", "1"} {
			_, err := runCmd(t, "put", "-order", "4", path, "color", pk)
			require.NoError(t, err)
		}

		out, err := runCmd(t, "get", path, "color")
		require.NoError(t, err)
		assert.Equal(t, "1\n2\n", out)

		out, err = runCmd(t, "del", path, "color", "1")
		require.NoError(t, err)
		assert.Equal(t, "removed: true\n", out)

		out, err = runCmd(t, "del", path, "missing")
		require.NoError(t, err)
		assert.Equal(t, "removed: false\n", out)

		out, err = runCmd(t, "stat", path)
		require.NoError(t, err)
		assert.Contains(t, out, "order:           4\n")
		assert.Contains(t, out, "keys:            1\n")

		out, err = runCmd(t, "verify", path)
		require.NoError(t, err)
		assert.Equal(t, "ok\n", out)
	})

	t.Run("dump and restore should copy an index", func(t *testing.T) {
		src, dst, dump := newFileName(".idx"), newFileName(".idx"), newFileName(".dump")
		defer common.Remove(src)
		defer common.Remove(dst)
		defer common.Remove(dump)

		for i := 0; i < 20; i++ {
			_, err := runCmd(t, "put", "-order", "4", src, common.RandStr(5, 10), "pk")
			require.NoError(t, err)
		}
		_, err := runCmd(t, "put", src, "known", "pk")
		require.NoError(t, err)

		_, err = runCmd(t, "dump", src, dump)
		require.NoError(t, err)

		out, err := runCmd(t, "restore", "-order", "5", dst, dump)
		require.NoError(t, err)
		assert.Contains(t, out, "restored")

		out, err = runCmd(t, "get", dst, "known")
		require.NoError(t, err)
		assert.Equal(t, "pk\n", out)
	})

	t.Run("read only commands should not create a file", func(t *testing.T) {
		path := newFileName(".idx")
		defer common.Remove(path)

		_, err := runCmd(t, "stat", path)
		assert.Error(t, err)

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("bad arguments should be usage errors", func(t *testing.T) {
		for _, args := range [][]string{
			{},
			{"unknown", "file"},
			{"get"},
			{"put", "file", "only_key"},
			{"stat", "-nope", "file"},
		} {
			_, err := runCmd(t, args...)
			assert.ErrorIs(t, err, errUsage, "%v", args)
		}
	})
}
