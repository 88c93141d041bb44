package main

import (
	"context"
	"fmt"
	"path"

	"dagger/wembed/internal/dagger"
)

// bucket holds the credentials for the S3-compatible artifact store.
type bucket struct {
	endpoint        *dagger.Secret
	name            *dagger.Secret
	accessKeyId     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// sync copies artifacts under prefix in the bucket with the AWS CLI.
func (b *bucket) sync(ctx context.Context, artifacts *dagger.Directory, prefix string) error {
	name, err := b.name.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket name: %w", err)
	}
	endpoint, err := b.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get endpoint: %w", err)
	}

	_, err = dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", b.accessKeyId).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", b.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts").
		WithExec([]string{
			"aws", "s3", "sync", ".",
			"s3://" + path.Join(name, prefix),
			"--endpoint-url", endpoint,
		}).
		Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to upload artifacts to %q: %w", prefix, err)
	}
	return nil
}

// Release builds versioned binaries and uploads them under the version and
// under "latest". A "nightly" version is only uploaded under "nightly".
func (w *Wembed) Release(
	ctx context.Context,

	// Version string (e.g., "v1.0.0" or "nightly")
	version string,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	b := &bucket{
		endpoint:        endpoint,
		name:            bucketName,
		accessKeyId:     accessKeyId,
		secretAccessKey: secretAccessKey,
	}

	artifacts := w.BuildRelease(ctx, version, commit)

	prefixes := []string{version}
	if version != "nightly" {
		prefixes = append(prefixes, "latest")
	}
	for _, prefix := range prefixes {
		if err := b.sync(ctx, artifacts, prefix); err != nil {
			return artifacts, err
		}
	}
	return artifacts, nil
}
