package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/errcode"
	"cvbuilder/internal/resume"
	"cvbuilder/internal/tasks"
)

type fakeSource struct {
	view    resume.PublicView
	shareID string
	err     error
}

func (f fakeSource) PublicSnapshot(context.Context, uint) (resume.PublicView, string, error) {
	return f.view, f.shareID, f.err
}

type fakeStore struct {
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) PutObject(_ context.Context, key string, data []byte, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) DeleteObject(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

type published struct {
	channel string
	message SnapshotNotifyMessage
}

type fakeNotifier struct {
	sent []published
}

func (n *fakeNotifier) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	var msg SnapshotNotifyMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	n.sent = append(n.sent, published{channel: channel, message: msg})
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func snapshotTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := tasks.NewPublicSnapshotTask(tasks.PublicSnapshotPayload{
		ResumeID:      5,
		OwnerID:       9,
		ShareID:       "tok",
		CorrelationID: "corr",
	})
	require.NoError(t, err)
	return task
}

func TestSnapshotHandlerPublishes(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	view := resume.PublicView{ID: 5, Title: "cv", TemplateName: "classic", Sections: []resume.SectionView{}}
	h := NewSnapshotTaskHandler(fakeSource{view: view, shareID: "tok"}, store, notifier, nil)

	require.NoError(t, h.ProcessTask(context.Background(), snapshotTask(t)))

	raw, ok := store.objects["public/tok.json"]
	require.True(t, ok)
	var got resume.PublicView
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, view, got)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "user_notify:9", notifier.sent[0].channel)
	assert.Equal(t, SnapshotPublished, notifier.sent[0].message.Status)
	assert.Equal(t, "corr", notifier.sent[0].message.CorrelationID)
}

func TestSnapshotHandlerRemovesWhenGone(t *testing.T) {
	store := newFakeStore()
	store.objects["public/tok.json"] = []byte("{}")
	notifier := &fakeNotifier{}
	h := NewSnapshotTaskHandler(fakeSource{err: errcode.NotFound("resume not found")}, store, notifier, nil)

	require.NoError(t, h.ProcessTask(context.Background(), snapshotTask(t)))
	assert.Equal(t, []string{"public/tok.json"}, store.deleted)
	assert.Empty(t, store.objects)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, SnapshotRemoved, notifier.sent[0].message.Status)
}

func TestSnapshotHandlerRetriesOnSourceFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewSnapshotTaskHandler(fakeSource{err: errcode.Unexpected("load resume", errors.New("db down"))}, newFakeStore(), notifier, nil)

	err := h.ProcessTask(context.Background(), snapshotTask(t))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, notifier.sent)
}

func TestSnapshotHandlerSkipsRetryForBadInput(t *testing.T) {
	h := NewSnapshotTaskHandler(fakeSource{}, newFakeStore(), nil, nil)
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypePublicSnapshot, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	store := newFakeStore()
	store.putErr = minio.ErrorResponse{Code: "NoSuchBucket"}
	h = NewSnapshotTaskHandler(fakeSource{view: resume.PublicView{ID: 5}, shareID: "tok"}, store, nil, nil)
	err = h.ProcessTask(context.Background(), snapshotTask(t))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
