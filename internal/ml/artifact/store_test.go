package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketguard/scoring/internal/errs"
	"github.com/ticketguard/scoring/internal/ml/forest"
	"github.com/ticketguard/scoring/internal/ml/preprocess"
	"github.com/ticketguard/scoring/internal/ml/synth"
)

func buildArtifact(t *testing.T) *Artifact {
	t.Helper()
	ds, err := synth.Generate(synth.MinSize, 42)
	require.NoError(t, err)

	tr, err := preprocess.Fit(ds.Features())
	require.NoError(t, err)
	cfg := forest.Config{Trees: 5, MaxDepth: 4, MinSamplesLeaf: 3, Seed: 1}
	f, err := forest.Fit(context.Background(), tr.Transform(ds.Features()), ds.Labels(), cfg)
	require.NoError(t, err)

	a, err := New("v1", tr, f, ds.Len(), 0.75, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return a
}

func TestEncodeDecode(t *testing.T) {
	a := buildArtifact(t)
	data, err := Encode(a)
	require.NoError(t, err)
	require.NotEmpty(t, a.Fingerprint())
	assert.Equal(t, []byte("TGSM"), data[:4])

	b, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, "v1", b.Version)
	assert.Equal(t, synth.MinSize, b.Records)
	assert.Equal(t, 0.75, b.ValidationAccuracy)
	assert.True(t, a.TrainedAt.Equal(b.TrainedAt))

	ds, err := synth.Generate(synth.MinSize, 7)
	require.NoError(t, err)
	for _, row := range ds.Features()[:100] {
		assert.Equal(t, a.PredictProba(row), b.PredictProba(row))
	}
}

func TestDecode_Corrupt(t *testing.T) {
	data, err := Encode(buildArtifact(t))
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xff

	badVersion := append([]byte(nil), data...)
	badVersion[4] = 9

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", data[:5]},
		{"bad magic", append([]byte("XXXX"), data[4:]...)},
		{"bad version", badVersion},
		{"checksum mismatch", flipped},
		{"truncated", data[:len(data)-10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrArtifactCorrupt)
		})
	}
}

func TestNew_RejectsMismatchedWidth(t *testing.T) {
	a := buildArtifact(t)
	f := *a.Forest
	f.FeatureSize++
	_, err := New("v1", a.Transformer, &f, 1, 0.5, time.Now())
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "models", "attendance_model.bin")

	a := buildArtifact(t)
	require.NoError(t, Save(path, a))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, errs.ErrArtifactNotFound)

	garbage := filepath.Join(dir, "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("not a model"), 0o644))
	_, err = Load(garbage)
	assert.ErrorIs(t, err, errs.ErrArtifactCorrupt)

	// A directory at the model path cannot be read as a file.
	_, err = Load(dir)
	assert.ErrorIs(t, err, errs.ErrArtifactCorrupt)
	assert.NotErrorIs(t, err, errs.ErrArtifactNotFound)
	assert.Contains(t, err.Error(), "unreadable model artifact")
}

func TestSave_ConcurrentReadersSeeWholeFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	a := buildArtifact(t)
	require.NoError(t, Save(path, a))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	readErrs := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := Load(path); err != nil {
				select {
				case readErrs <- err:
				default:
				}
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, Save(path, a))
	}
	close(stop)
	wg.Wait()

	select {
	case err := <-readErrs:
		t.Fatalf("reader observed a partial artifact: %v", err)
	default:
	}
}

type memMirror struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func (m *memMirror) Put(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memMirror) Get(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, errs.New(errs.CodeArtifactNotFound, "no mirrored artifact")
	}
	return m.data, nil
}

func TestStore_MirrorAndRestore(t *testing.T) {
	ctx := context.Background()
	mirror := &memMirror{}

	primary := NewStore(filepath.Join(t.TempDir(), "model.bin"), WithMirror(mirror))
	a := buildArtifact(t)
	require.NoError(t, primary.Save(ctx, a))
	require.NotNil(t, mirror.data)

	replica := NewStore(filepath.Join(t.TempDir(), "models", "model.bin"), WithMirror(mirror))
	restored, err := replica.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)

	b, err := replica.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	restored, err = replica.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored, "existing file is kept")
}

func TestStore_RestoreWithEmptyMirror(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "model.bin"), WithMirror(&memMirror{}))
	restored, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestStore_MirrorFailureDoesNotFailSave(t *testing.T) {
	mirror := &memMirror{err: errors.New("bucket unavailable")}
	s := NewStore(filepath.Join(t.TempDir(), "model.bin"), WithMirror(mirror))
	require.NoError(t, s.Save(context.Background(), buildArtifact(t)))

	_, err := s.Load(context.Background())
	assert.NoError(t, err)
}

func TestStore_PullReplacesLocalCopy(t *testing.T) {
	ctx := context.Background()
	mirror := &memMirror{}
	a := buildArtifact(t)

	replica := NewStore(filepath.Join(t.TempDir(), "model.bin"), WithMirror(mirror))
	require.NoError(t, Save(replica.Path(), a))

	newer, err := New("v2", a.Transformer, a.Forest, a.Records, 0.8, a.TrainedAt.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, NewStore(filepath.Join(t.TempDir(), "model.bin"), WithMirror(mirror)).Save(ctx, newer))

	pulled, err := replica.Pull(ctx)
	require.NoError(t, err)
	assert.True(t, pulled)

	got, err := replica.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Version)

	pulled, err = NewStore(replica.Path()).Pull(ctx)
	require.NoError(t, err)
	assert.False(t, pulled, "no mirror configured")
}
