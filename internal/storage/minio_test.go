package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsMissingObject(t *testing.T) {
	assert.False(t, IsMissingObject(nil))
	assert.True(t, IsMissingObject(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, IsMissingObject(fmt.Errorf("remove object %q: %w", "public/a.json", minio.ErrorResponse{Code: "NotFound"})))
	assert.False(t, IsMissingObject(minio.ErrorResponse{Code: "AccessDenied", Message: "denied"}))
	// 代理或网络层的文本错误不能被当成“对象已删除”。
	assert.False(t, IsMissingObject(errors.New("dial tcp: lookup minio: host not found")))
	assert.False(t, IsMissingObject(errors.New("404 page not found")))
}

func TestIsMissingBucket(t *testing.T) {
	assert.True(t, IsMissingBucket(minio.ErrorResponse{Code: "NoSuchBucket"}))
	assert.True(t, IsMissingBucket(fmt.Errorf("put object: %w", minio.ErrorResponse{Code: "NoSuchBucket"})))
	assert.False(t, IsMissingBucket(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, IsMissingBucket(errors.New("specified bucket does not exist")))
}

func TestPublicSnapshotKey(t *testing.T) {
	assert.Equal(t, "public/abc.json", PublicSnapshotKey("abc"))
}
