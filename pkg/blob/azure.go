package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azblobblob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureConfig holds the service principal used to reach the storage account
type AzureConfig struct {
	AccountURL    string
	ContainerName string
	TenantID      string
	ClientID      string
	ClientSecret  string
}

// azureBackend stores objects in one Azure Blob container
type azureBackend struct {
	client    *azblob.Client
	container string
}

// NewAzureBackend authenticates with a client secret credential
func NewAzureBackend(cfg AzureConfig) (Backend, error) {
	if cfg.AccountURL == "" || cfg.ContainerName == "" {
		return nil, fmt.Errorf("blob account url and container name are required")
	}
	cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azblob.NewClient(cfg.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &azureBackend{client: client, container: cfg.ContainerName}, nil
}

func (b *azureBackend) Upload(ctx context.Context, name string, data []byte, contentType string) error {
	disposition := "inline"
	_, err := b.client.UploadBuffer(ctx, b.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &azblobblob.HTTPHeaders{
			BlobContentType:        &contentType,
			BlobContentDisposition: &disposition,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", name, err)
	}
	return nil
}

func (b *azureBackend) Download(ctx context.Context, name string) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return data, nil
}

func (b *azureBackend) List(ctx context.Context, prefix string) ([]string, error) {
	pager := b.client.NewListBlobsFlatPager(b.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})

	var names []string
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

func (b *azureBackend) Delete(ctx context.Context, name string) error {
	if _, err := b.client.DeleteBlob(ctx, b.container, name, nil); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}
