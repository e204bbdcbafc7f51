package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// blobAPI is the slice of the azblob client the uploader needs; tests swap
// in a fake.
type blobAPI interface {
	UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error)
}

// BlobUploader ships run bundles to an Azure Blob Storage container.
type BlobUploader struct {
	client    blobAPI
	container string
}

// NewBlobUploader authenticates with the ambient Azure credential chain
// (env vars, managed identity, az login) against the given account URL.
func NewBlobUploader(accountURL, container string) (*BlobUploader, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("acquiring azure credential: %w", err)
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return &BlobUploader{client: client, container: container}, nil
}

// Upload sends the file at path to the container under blobName. An empty
// blobName defaults to the file's base name.
func (u *BlobUploader) Upload(ctx context.Context, path, blobName string) error {
	if blobName == "" {
		blobName = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if _, err := u.client.UploadFile(ctx, u.container, blobName, f, nil); err != nil {
		return fmt.Errorf("uploading %s to %s/%s: %w", path, u.container, blobName, err)
	}
	return nil
}
