package blockclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdexec/internal/blockserver"
	"git.home.luguber.info/inful/mdexec/internal/docmodel"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/interp"
	"git.home.luguber.info/inful/mdexec/internal/registry"
)

func startServer(t *testing.T) (*Client, *registry.Registry) {
	t.Helper()
	doc, err := docmodel.Parse("```csv id=data\na,b\n```\n\n```output id=out\n```\n\n<!-- id:r -->\n<!-- /id:r -->\n<!-- id:r -->\n<!-- /id:r -->\n")
	require.NoError(t, err)
	reg := registry.New(doc)

	srv := blockserver.New(reg, nil)
	path, err := srv.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close(context.Background()) })

	return New(path), reg
}

func TestClient_GetQuerySet(t *testing.T) {
	c, reg := startServer(t)
	ctx := context.Background()

	b, err := c.Get(ctx, "data")
	require.NoError(t, err)
	require.Equal(t, "a,b", b.Content)
	require.Equal(t, "csv", b.Lang)

	all, err := c.Query(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)

	rs, err := c.Query(ctx, "r")
	require.NoError(t, err)
	require.Len(t, rs, 2)

	set, err := c.Set(ctx, "out", "42")
	require.NoError(t, err)
	require.Equal(t, "42", set.Content)

	h, err := reg.Get("out")
	require.NoError(t, err)
	require.Equal(t, "42", h.Content())
}

func TestClient_ErrorsKeepCategory(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.True(t, errors.HasCategory(err, errors.CategoryNotFound))
	require.Equal(t, `get_block: no block with id "missing"`, errors.MessageOf(err))

	_, err = c.Get(ctx, "r")
	require.True(t, errors.HasCategory(err, errors.CategoryNotUnique))

	_, err = c.Set(ctx, "missing", "x")
	require.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(interp.EnvSocket, "")
	_, err := FromEnv()
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))

	t.Setenv(interp.EnvSocket, "/tmp/x.sock")
	c, err := FromEnv()
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestClient_Unreachable(t *testing.T) {
	c := New("/nonexistent/mdexec.sock")
	_, err := c.Get(context.Background(), "x")
	require.True(t, errors.HasCategory(err, errors.CategoryRuntime))
}
