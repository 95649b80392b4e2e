package storage

import (
	"context"
	"fmt"
	"io"
	"iter"
	nethttp "net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/credential"
)

// AzureBackend implements the object-store variant of the gateway against
// Azure Blob Storage. The blob client is rebuilt whenever the provider hands
// out a different credential (a refreshed SAS or delegated token); the HTTP
// transport is shared across rebuilds to keep the connection pool.
//
// FailIfExists uses the service's conditional write (If-None-Match: *), so
// duplicate detection is atomic here rather than check-then-write.
type AzureBackend struct {
	accountURL string
	provider   credential.Provider
	transport  *nethttp.Client

	mu         sync.Mutex
	client     *azblob.Client
	clientCred credential.Credential
}

// NewAzureBackend creates a backend for the storage account at accountURL.
// The account URL may be empty only for the connection-string kind, which
// carries the endpoint itself.
func NewAzureBackend(accountURL string, provider credential.Provider) *AzureBackend {
	return &AzureBackend{
		accountURL: accountURL,
		provider:   provider,
		transport:  &nethttp.Client{},
	}
}

func (a *AzureBackend) Upload(ctx context.Context, target Target, obj Object, conflictPolicy ConflictPolicy) error {
	client, err := a.getClient(ctx)
	if err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{}
	if conflictPolicy == FailIfExists {
		opts.AccessConditions = &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		}
	}

	_, err = client.UploadStream(ctx, target.Container, obj.Name, obj.Content, opts)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
			return apperr.New(apperr.KindAlreadyExists,
				fmt.Sprintf("file %s already exists", obj.Name))
		}
		return wrapBackendErr(ctx, "failed to upload blob", err)
	}
	return nil
}

func (a *AzureBackend) List(ctx context.Context, target Target) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		client, err := a.getClient(ctx)
		if err != nil {
			yield("", err)
			return
		}

		pager := client.NewListBlobsFlatPager(target.Container, nil)
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield("", wrapBackendErr(ctx, "failed to list blobs", err))
				return
			}
			for _, item := range page.Segment.BlobItems {
				if item.Name == nil {
					continue
				}
				if !yield(*item.Name, nil) {
					return
				}
			}
		}
	}
}

func (a *AzureBackend) Download(ctx context.Context, target Target, name string) (io.ReadCloser, int64, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return nil, 0, err
	}

	resp, err := client.DownloadStream(ctx, target.Container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, 0, apperr.New(apperr.KindNotFound, fmt.Sprintf("file %s not found", name))
		}
		return nil, 0, wrapBackendErr(ctx, "failed to download blob", err)
	}

	size := int64(-1)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return resp.Body, size, nil
}

// getClient returns a blob client built from the current credential,
// rebuilding it under the lock when the credential has rotated.
func (a *AzureBackend) getClient(ctx context.Context) (*azblob.Client, error) {
	cred, err := a.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil && a.clientCred.Kind == cred.Kind && a.clientCred.Secret == cred.Secret {
		return a.client, nil
	}

	client, err := a.buildClient(cred)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.clientCred = cred
	return client, nil
}

func (a *AzureBackend) buildClient(cred credential.Credential) (*azblob.Client, error) {
	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: a.transport,
		},
	}

	switch cred.Kind {
	case credential.ConnectionString:
		client, err := azblob.NewClientFromConnectionString(cred.Secret, opts)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidConfig, "connection string was rejected", err)
		}
		return client, nil

	case credential.SharedAccessSignature:
		client, err := azblob.NewClientWithNoCredential(a.accountURL+"?"+cred.Secret, opts)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidConfig, "SAS URL was rejected", err)
		}
		return client, nil

	case credential.DelegatedToken:
		client, err := azblob.NewClient(a.accountURL, delegatedTokenCredential{cred: cred}, opts)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidConfig, "account URL was rejected", err)
		}
		return client, nil

	case credential.ManagedIdentity:
		identity, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidConfig, "managed identity is not available", err)
		}
		client, err := azblob.NewClient(a.accountURL, identity, opts)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidConfig, "account URL was rejected", err)
		}
		return client, nil
	}

	return nil, apperr.New(apperr.KindInvalidConfig, "unsupported credential kind for Azure backend")
}

// delegatedTokenCredential presents a session's delegated token to the SDK.
// Expiry is enforced upstream by the credential provider, which hands the
// backend a fresh credential (and thus a new client) after each refresh.
type delegatedTokenCredential struct {
	cred credential.Credential
}

func (d delegatedTokenCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     d.cred.Secret,
		ExpiresOn: d.cred.ExpiresAt,
	}, nil
}
