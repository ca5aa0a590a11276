package simplevfs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/simplevfs"
	flowmemory "github.com/tendant/simple-vfs/pkg/simplevfs/flow/memory"
	blobmemory "github.com/tendant/simple-vfs/pkg/simplevfs/storage/memory"
)

// failingRunner wraps another runner and injects failures.
type failingRunner struct {
	inner     simplevfs.FlowRunner
	startErr  error
	statusErr error
}

func (f *failingRunner) Start(ctx context.Context, kind string, target simplevfs.URN) (simplevfs.FlowRef, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.inner.Start(ctx, kind, target)
}

func (f *failingRunner) Status(ctx context.Context, ref simplevfs.FlowRef) (simplevfs.FlowStatus, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	return f.inner.Status(ctx, ref)
}

func newLockedFile(t *testing.T, runner simplevfs.FlowRunner) (simplevfs.Factory, simplevfs.URN) {
	t.Helper()
	factory := newTestFactory(t,
		simplevfs.WithBlobStore("memory", blobmemory.New()),
		simplevfs.WithFlowRunner(runner),
	)

	ctx := context.Background()
	urn := simplevfs.URN("aff4:/C.1234567812345678/fs/os/var/log/auth.log")
	file, err := factory.CreateFile(ctx, urn, simplevfs.ModeReadWrite)
	require.NoError(t, err)
	_, err = file.Write([]byte("seed"))
	require.NoError(t, err)
	require.NoError(t, file.Flush(ctx))
	return factory, urn
}

func TestUpdateStartsOneFlow(t *testing.T) {
	ctx := context.Background()
	runner := flowmemory.New()
	factory, urn := newLockedFile(t, runner)

	obj, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
	require.NoError(t, err)

	ref1, err := obj.Update(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ref1)
	assert.Equal(t, 1, runner.StartCount())

	t.Run("second update while running returns the same flow", func(t *testing.T) {
		other, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
		require.NoError(t, err)

		ref2, err := other.Update(ctx)
		require.NoError(t, err)
		assert.Equal(t, ref1, ref2)
		assert.Equal(t, 1, runner.StartCount())
	})

	t.Run("finished flow releases the lock", func(t *testing.T) {
		require.NoError(t, runner.SetStatus(ref1, simplevfs.FlowFinished))

		other, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
		require.NoError(t, err)

		ref3, err := other.Update(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, ref1, ref3)
		assert.Equal(t, 2, runner.StartCount())
	})

	t.Run("errored flow releases the lock", func(t *testing.T) {
		flows := runner.Flows()
		require.NoError(t, runner.SetStatus(flows[len(flows)-1].Ref, simplevfs.FlowErrored))

		other, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
		require.NoError(t, err)

		_, err = other.Update(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, runner.StartCount())
	})
}

func TestUpdateStatusUnavailable(t *testing.T) {
	ctx := context.Background()
	runner := &failingRunner{inner: flowmemory.New()}
	factory, urn := newLockedFile(t, runner)

	obj, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
	require.NoError(t, err)
	_, err = obj.Update(ctx)
	require.NoError(t, err)

	// The lock holder's state can no longer be determined. The lock must
	// not be treated as released.
	runner.statusErr = errors.New("flow subsystem unreachable")

	other, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
	require.NoError(t, err)

	_, err = other.Update(ctx)
	assert.ErrorIs(t, err, simplevfs.ErrLockStatusUnavailable)
	assert.Equal(t, 1, runner.inner.(*flowmemory.Runner).StartCount())
}

func TestUpdateStartFailure(t *testing.T) {
	ctx := context.Background()
	startErr := errors.New("no agents available")
	runner := &failingRunner{inner: flowmemory.New(), startErr: startErr}
	factory, urn := newLockedFile(t, runner)

	obj, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
	require.NoError(t, err)

	_, err = obj.Update(ctx)
	assert.ErrorIs(t, err, startErr)

	t.Run("no lock is written on start failure", func(t *testing.T) {
		runner.startErr = nil

		other, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
		require.NoError(t, err)
		ref, err := other.Update(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, ref)
	})
}

func TestUpdateWithoutRunner(t *testing.T) {
	ctx := context.Background()
	factory := newTestFactory(t, simplevfs.WithBlobStore("memory", blobmemory.New()))

	urn := simplevfs.URN("aff4:/C.1234567812345678/fs/os/tmp/f")
	file, err := factory.CreateFile(ctx, urn, simplevfs.ModeReadWrite)
	require.NoError(t, err)
	_, err = file.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, file.Flush(ctx))

	obj, err := factory.Open(ctx, urn, simplevfs.KindFile, simplevfs.ModeReadWrite)
	require.NoError(t, err)
	_, err = obj.Update(ctx)
	assert.Error(t, err)
}

func TestUpdateOnKindWithoutLock(t *testing.T) {
	ctx := context.Background()
	runner := flowmemory.New()
	factory := newTestFactory(t, simplevfs.WithFlowRunner(runner))

	obj, err := factory.Create(ctx, "aff4:/C.9999999999999999", simplevfs.KindClient, simplevfs.ModeReadWrite)
	require.NoError(t, err)
	require.NoError(t, obj.SetString(simplevfs.AttrHostname, "h"))
	require.NoError(t, obj.Close(ctx))

	_, err = obj.Update(ctx)
	assert.ErrorIs(t, err, simplevfs.ErrUnknownAttribute)
	assert.Equal(t, 0, runner.StartCount())
}
