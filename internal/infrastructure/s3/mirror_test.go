package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketguard/scoring/internal/errs"
)

type fakeObjects struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures int
	puts     int
	gets     int
}

func (f *fakeObjects) fail() error {
	if f.failures > 0 {
		f.failures--
		return errors.New("503 slow down")
	}
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if err := f.fail(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if err := f.fail(); err != nil {
		return nil, err
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func newFake() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func TestMirror_PutGet(t *testing.T) {
	fake := newFake()
	m := NewMirrorWithClient(fake, "models", "scoring/model.bin")

	require.NoError(t, m.Put(context.Background(), []byte("TGSM payload")))
	got, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("TGSM payload"), got)
	assert.Contains(t, fake.objects, "models/scoring/model.bin")
}

func TestMirror_MissingObjectIsNotFound(t *testing.T) {
	fake := newFake()
	m := NewMirrorWithClient(fake, "models", "scoring/model.bin")

	_, err := m.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrArtifactNotFound)
	assert.Equal(t, 1, fake.gets, "not found is not retried")
}

func TestMirror_RetriesTransientErrors(t *testing.T) {
	fake := newFake()
	fake.failures = 2
	m := NewMirrorWithClient(fake, "models", "model.bin")

	require.NoError(t, m.Put(context.Background(), []byte("x")))
	assert.Equal(t, 3, fake.puts)

	fake.failures = 10
	err := m.Put(context.Background(), []byte("x"))
	assert.ErrorContains(t, err, "slow down")
}

func TestMirror_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMirrorWithClient(newFake(), "models", "model.bin")
	assert.ErrorIs(t, m.Put(ctx, []byte("x")), context.Canceled)
}
