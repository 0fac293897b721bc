// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pluginsource resolves a plugin_files entry to a local path
// the shared-library loader can open, downloading it first if it
// names an object in S3-compatible storage.
package pluginsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Prefix = "s3://"

// Resolve returns a local filesystem path for entry: entry itself if
// it is already a local path, or a freshly downloaded temp file if it
// names an s3://bucket/key object.
func Resolve(ctx context.Context, entry string) (path string, cleanup func(), err error) {
	if !strings.HasPrefix(entry, s3Prefix) {
		return entry, func() {}, nil
	}

	bucket, key, err := splitS3URI(entry)
	if err != nil {
		return "", nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("pluginsource: loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", nil, fmt.Errorf("pluginsource: downloading %s: %w", entry, err)
	}
	defer out.Body.Close()

	f, err := os.CreateTemp("", "dcrunner-plugin-*.so")
	if err != nil {
		return "", nil, fmt.Errorf("pluginsource: creating temp file: %w", err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("pluginsource: writing %s: %w", entry, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("pluginsource: closing temp file: %w", err)
	}

	path = f.Name()
	return path, func() { os.Remove(path) }, nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, s3Prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("pluginsource: malformed s3 uri %q, want s3://bucket/key", uri)
	}
	return parts[0], parts[1], nil
}
