package artifacts

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_RoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "scenario_001.md"), []byte("first\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "logs", "run.jsonl"), []byte("{}\n"), 0o644))

	bundlePath := filepath.Join(t.TempDir(), "run.tar.gz")
	require.NoError(t, Bundle(src, bundlePath))

	f, err := os.Open(bundlePath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	contents := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[hdr.Name] = string(data)
	}

	assert.Equal(t, map[string]string{
		"scenario_001.md": "first\n",
		"logs/run.jsonl":  "{}\n",
	}, contents)
}

func TestBundle_MissingSourceDir(t *testing.T) {
	err := Bundle(filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "out.tar.gz"))
	assert.Error(t, err)
}

type fakeBlobAPI struct {
	container string
	blobName  string
	size      int64
	err       error
}

func (f *fakeBlobAPI) UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error) {
	f.container = containerName
	f.blobName = blobName
	info, statErr := file.Stat()
	if statErr == nil {
		f.size = info.Size()
	}
	return azblob.UploadFileResponse{}, f.err
}

func TestBlobUploader_Upload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	fake := &fakeBlobAPI{}
	u := &BlobUploader{client: fake, container: "runs"}

	require.NoError(t, u.Upload(context.Background(), path, ""))
	assert.Equal(t, "runs", fake.container)
	assert.Equal(t, "run.tar.gz", fake.blobName, "blob name defaults to the file base name")
	assert.Equal(t, int64(len("payload")), fake.size)

	require.NoError(t, u.Upload(context.Background(), path, "archive/2026/run.tar.gz"))
	assert.Equal(t, "archive/2026/run.tar.gz", fake.blobName)
}

func TestBlobUploader_MissingFile(t *testing.T) {
	u := &BlobUploader{client: &fakeBlobAPI{}, container: "runs"}
	err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.tar.gz"), "")
	assert.Error(t, err)
}
