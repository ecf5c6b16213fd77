package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
)

// manifest lists the versions published for one remote model identifier, at
// "<identifier>/manifest.json" in the bucket. Real publishing pipelines are
// out of scope (spec §1); the manifest shape is the minimal contract the
// fetcher needs.
type manifest struct {
	Versions []string `json:"versions"`
}

// S3Fetcher fetches remote classifier artifacts from an S3 bucket using the
// default AWS credential chain (IRSA, instance profile, environment), the
// same pattern the teacher uses for its Bedrock integration.
type S3Fetcher struct {
	client   *s3.Client
	bucket   string
	cacheDir string
}

var _ Fetcher = (*S3Fetcher)(nil)

// NewS3Fetcher builds an S3Fetcher for bucket, caching fetched artifacts
// under cacheDir. region may be empty to use the SDK's resolved default.
func NewS3Fetcher(ctx context.Context, bucket, region, cacheDir string) (*S3Fetcher, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("remote: load aws config: %w", err)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("remote: create cache dir: %w", err)
	}
	return &S3Fetcher{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		cacheDir: cacheDir,
	}, nil
}

// cacheKey returns the content-addressed cache directory name for a
// resolved (identifier, version) pair (spec §4.6).
func cacheKey(identifier, version string) string {
	sum := sha256.Sum256([]byte(identifier + "@" + version))
	return hex.EncodeToString(sum[:])
}

// Fetch resolves revision against the identifier's published manifest using
// semver constraint matching, then downloads every object under the
// resolved version's prefix into the content-addressed cache, skipping the
// download entirely if the cache directory already exists and is
// non-empty.
func (f *S3Fetcher) Fetch(ctx context.Context, identifier, revision string) (string, error) {
	version, err := f.resolveVersion(ctx, identifier, revision)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(f.cacheDir, cacheKey(identifier, version))
	if entries, err := os.ReadDir(dest); err == nil && len(entries) > 0 {
		obslog.Debug("remote: cache hit", "identifier", identifier, "version", version)
		return dest, nil
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("remote: create artifact dir: %w", err)
	}

	prefix := fmt.Sprintf("%s/%s/", identifier, version)
	if err := f.downloadPrefix(ctx, prefix, dest); err != nil {
		return "", fmt.Errorf("remote: download %s: %w", prefix, err)
	}
	obslog.Info("remote: fetched model artifact", "identifier", identifier, "version", version, "path", dest)
	return dest, nil
}

func (f *S3Fetcher) resolveVersion(ctx context.Context, identifier, revision string) (string, error) {
	// An exact, already-concrete version needs no manifest lookup.
	if v, err := semver.NewVersion(revision); err == nil && !strings.ContainsAny(revision, "^~<>=*") {
		return v.Original(), nil
	}

	constraint, err := semver.NewConstraint(revision)
	if err != nil {
		return "", fmt.Errorf("remote: invalid revision constraint %q: %w", revision, err)
	}

	key := identifier + "/manifest.json"
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &f.bucket, Key: &key})
	if err != nil {
		return "", fmt.Errorf("remote: read manifest for %q: %w", identifier, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("remote: read manifest body: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("remote: parse manifest: %w", err)
	}

	var best *semver.Version
	var bestRaw string
	for _, raw := range m.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil || !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestRaw = raw
		}
	}
	if best == nil {
		return "", fmt.Errorf("remote: no version of %q satisfies %q", identifier, revision)
	}
	return bestRaw, nil
}

func (f *S3Fetcher) downloadPrefix(ctx context.Context, prefix, dest string) error {
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket: &f.bucket,
		Prefix: &prefix,
	})

	found := false
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			found = true
			if err := f.downloadObject(ctx, *obj.Key, prefix, dest); err != nil {
				return err
			}
		}
	}
	if !found {
		return fmt.Errorf("no objects under prefix %q", prefix)
	}
	return nil
}

func (f *S3Fetcher) downloadObject(ctx context.Context, key, prefix, dest string) error {
	rel := strings.TrimPrefix(key, prefix)
	if rel == "" {
		return nil
	}
	localPath := filepath.Join(dest, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &f.bucket, Key: &key})
	if err != nil {
		return fmt.Errorf("get object %q: %w", key, err)
	}
	defer out.Body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, out.Body)
	return err
}
