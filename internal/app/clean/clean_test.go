package clean_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EdgeApp/libforge/internal/app/clean"
	"github.com/EdgeApp/libforge/internal/model"
	"github.com/EdgeApp/libforge/internal/registry"
	"github.com/EdgeApp/libforge/internal/storage/memory"
)

func okTask(name string) model.Task {
	return model.Task{
		Name: name,
		Run:  func(ctx context.Context, bc model.BuildContext) error { return nil },
	}
}

func TestServiceRun(t *testing.T) {
	ctx := context.Background()

	newFixture := func(t *testing.T) (*clean.Service, *memory.StatusRepository) {
		t.Helper()

		reg := registry.New()
		require.NoError(t, reg.Register(okTask("zlib")))
		require.NoError(t, reg.Register(okTask("openssl")))

		status, err := memory.NewStatusRepository(memory.StatusRepositoryConfig{})
		require.NoError(t, err)
		record := model.StatusRecord{CacheTag: "v1", LastRun: time.Now().UTC(), Success: true}
		require.NoError(t, status.SaveStatus(ctx, "zlib", record))
		require.NoError(t, status.SaveStatus(ctx, "openssl", record))

		svc, err := clean.NewService(clean.ServiceConfig{Registry: reg, Status: status})
		require.NoError(t, err)
		return svc, status
	}

	t.Run("Cleaning without task names should drop every status.", func(t *testing.T) {
		svc, status := newFixture(t)

		require.NoError(t, svc.Run(ctx, clean.Request{}))

		for _, name := range []string{"zlib", "openssl"} {
			record, err := status.LoadStatus(ctx, name)
			require.NoError(t, err)
			assert.Nil(t, record)
		}
	})

	t.Run("Cleaning a single task should keep the others.", func(t *testing.T) {
		svc, status := newFixture(t)

		require.NoError(t, svc.Run(ctx, clean.Request{Tasks: []string{"zlib"}}))

		record, err := status.LoadStatus(ctx, "zlib")
		require.NoError(t, err)
		assert.Nil(t, record)

		record, err = status.LoadStatus(ctx, "openssl")
		require.NoError(t, err)
		assert.NotNil(t, record)
	})

	t.Run("Cleaning an unknown task should fail and change nothing.", func(t *testing.T) {
		svc, status := newFixture(t)

		err := svc.Run(ctx, clean.Request{Tasks: []string{"missing"}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrNotFound))

		record, err := status.LoadStatus(ctx, "zlib")
		require.NoError(t, err)
		assert.NotNil(t, record)
	})
}
