package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"asset-forge/internal/domain"
)

var (
	_ domain.ObjectStore = (*AzureStore)(nil)
	_ Presigner          = (*AzureStore)(nil)
)

// AzureOptions configures an Azure Blob Storage container.
type AzureOptions struct {
	AccountName string
	AccountKey  string
	Container   string
	Endpoint    string // defaults to https://<account>.blob.core.windows.net
	PublicBase  string
}

// AzureStore uploads block blobs with shared-key credentials.
type AzureStore struct {
	client     *azblob.Client
	container  string
	publicBase string
}

// NewAzureStore creates an AzureStore.
func NewAzureStore(opts AzureOptions) (*AzureStore, error) {
	if opts.AccountName == "" || opts.AccountKey == "" || opts.Container == "" {
		return nil, errors.New("Azure account name, key and container are required")
	}
	cred, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", opts.AccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	base := opts.PublicBase
	if base == "" {
		base = publicURL(endpoint, opts.Container)
	}
	return &AzureStore{client: client, container: opts.Container, publicBase: base}, nil
}

// Put uploads data under filename and returns its public URL.
func (s *AzureStore) Put(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if err := ValidateName(filename); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = ContentType(filename)
	}
	disposition := attachment(filename)
	_, err := s.client.UploadBuffer(ctx, s.container, filename, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:        &contentType,
			BlobContentDisposition: &disposition,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", s.container, filename, err)
	}
	return s.URL(filename), nil
}

// URL returns the public reference for filename.
func (s *AzureStore) URL(filename string) string {
	return publicURL(s.publicBase, filename)
}

// SignedURL returns a read-only SAS URL for filename.
func (s *AzureStore) SignedURL(_ context.Context, filename string, expiry time.Duration) (string, error) {
	if err := ValidateName(filename); err != nil {
		return "", err
	}
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(filename)
	u, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().Add(expiry), nil)
	if err != nil {
		return "", fmt.Errorf("generate SAS URL for %q: %w", filename, err)
	}
	return u, nil
}
