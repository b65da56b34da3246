package transform

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves objects from memory.
type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Source_Load(t *testing.T) {
	a := testArtifacts()
	names := DefaultArtifactNames()
	objects := make(map[string][]byte)
	for name, doc := range map[string]any{names.Scaler: a.Scaler, names.Embedding: a.Embedding, names.Centroids: a.Centroids} {
		var buf bytes.Buffer
		require.NoError(t, EncodeDocument(name, &buf, doc))
		objects["models/prod/"+name] = buf.Bytes()
	}
	src := NewS3Source(&fakeS3{objects: objects}, "models", "prod")

	store, err := Load(context.Background(), src, names)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Reference().Len())
	assert.Equal(t, "s3://models/prod", store.Info().Location)
}

func TestS3Source_Missing(t *testing.T) {
	src := NewS3Source(&fakeS3{objects: map[string][]byte{}}, "models", "")
	_, err := Load(context.Background(), src, DefaultArtifactNames())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArtifactMissing))
	assert.Contains(t, err.Error(), "s3://models/")
}
