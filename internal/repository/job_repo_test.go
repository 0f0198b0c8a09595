package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/tender_rag_server/internal/model"
	"github.com/qs3c/tender_rag_server/internal/testutil"
)

// 两种实现共用的行为测试
func storeContract(t *testing.T, store JobStore) {
	ctx := context.Background()

	t.Run("get unknown id", func(t *testing.T) {
		_, err := store.Get(ctx, "never-issued")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("save and get", func(t *testing.T) {
		job := testutil.TestJob(model.JobStatusStarted)
		require.NoError(t, store.Save(ctx, job))

		found, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, found.ID)
		assert.Equal(t, model.JobStatusStarted, found.Status)
		assert.Equal(t, "tender.xlsx", found.Filename)
		assert.Zero(t, found.Progress)
	})

	t.Run("save replaces the whole record", func(t *testing.T) {
		job := testutil.TestJob(model.JobStatusProcessing, testutil.WithProgress(42.5))
		require.NoError(t, store.Save(ctx, job))

		done := time.Now().Truncate(time.Second)
		job.Status = model.JobStatusSuccess
		job.Progress = 100
		job.DownloadPath = "/out/20240101/processed_tender.xlsx"
		job.ProcessedAt = &done
		require.NoError(t, store.Save(ctx, job))

		found, err := store.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusSuccess, found.Status)
		assert.Equal(t, 100.0, found.Progress)
		assert.Equal(t, job.DownloadPath, found.DownloadPath)
		require.NotNil(t, found.ProcessedAt)
		assert.True(t, done.Equal(*found.ProcessedAt))
	})

	t.Run("delete", func(t *testing.T) {
		job := testutil.TestJob(model.JobStatusStarted)
		require.NoError(t, store.Save(ctx, job))
		require.NoError(t, store.Delete(ctx, job.ID))

		_, err := store.Get(ctx, job.ID)
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestJobRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	storeContract(t, NewJobRepository(db))
}

func TestRedisJobStore(t *testing.T) {
	client, _ := testutil.SetupTestRedis(t)

	storeContract(t, NewRedisJobStore(client, "test:job:", time.Hour))
}

func TestRedisJobStore_KeyAndTTL(t *testing.T) {
	client, mr := testutil.SetupTestRedis(t)
	store := NewRedisJobStore(client, "test:job:", time.Hour)
	ctx := context.Background()

	job := testutil.TestJob(model.JobStatusStarted)
	require.NoError(t, store.Save(ctx, job))

	assert.True(t, mr.Exists("test:job:"+job.ID))
	assert.Equal(t, time.Hour, mr.TTL("test:job:"+job.ID))

	// 过期后等同于从未提交
	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRedisJobStore_Unavailable(t *testing.T) {
	client, mr := testutil.SetupTestRedis(t)
	store := NewRedisJobStore(client, "test:job:", 0)
	ctx := context.Background()

	mr.Close()

	_, err := store.Get(ctx, "any")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrJobNotFound)

	assert.ErrorIs(t, store.Save(ctx, testutil.TestJob(model.JobStatusStarted)), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreUnavailable)
}
