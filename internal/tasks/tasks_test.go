package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/logging"
	"cvbuilder/internal/resume"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

func TestSnapshotPublisherEnqueuesPayload(t *testing.T) {
	q := &fakeEnqueuer{}
	pub := NewSnapshotPublisher(q)
	ctx := logging.WithCorrelationID(context.Background(), "corr-1")

	err := pub.PublishSnapshot(ctx, resume.SnapshotRef{ResumeID: 3, OwnerID: 9, ShareID: "tok"})
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TypePublicSnapshot, q.tasks[0].Type())

	payload, err := ParsePublicSnapshotPayload(q.tasks[0])
	require.NoError(t, err)
	assert.Equal(t, PublicSnapshotPayload{ResumeID: 3, OwnerID: 9, ShareID: "tok", CorrelationID: "corr-1"}, payload)
}

func TestSnapshotPublisherPropagatesErrors(t *testing.T) {
	pub := NewSnapshotPublisher(&fakeEnqueuer{err: errors.New("redis down")})
	err := pub.PublishSnapshot(context.Background(), resume.SnapshotRef{ResumeID: 1, ShareID: "tok"})
	assert.ErrorContains(t, err, "redis down")

	err = pub.PublishSnapshot(context.Background(), resume.SnapshotRef{ResumeID: 1})
	assert.Error(t, err)
}

func TestParsePublicSnapshotPayloadRejectsGarbage(t *testing.T) {
	_, err := ParsePublicSnapshotPayload(asynq.NewTask(TypePublicSnapshot, []byte("not json")))
	assert.Error(t, err)
	_, err = ParsePublicSnapshotPayload(asynq.NewTask(TypePublicSnapshot, []byte(`{"resume_id":1}`)))
	assert.Error(t, err)
}

func TestUserNotifyChannel(t *testing.T) {
	assert.Equal(t, "user_notify:42", UserNotifyChannel(42))
}
