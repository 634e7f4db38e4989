package bus

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/titan-brain/internal/configregistry"
)

// evtRetentionDays and evtRetentionBytes are the default EVT cold-archive
// retention floors: size/age-bounded at 10GiB / 30 days.
const (
	evtRetentionDays  = 30
	evtRetentionBytes = 10 * 1024 * 1024 * 1024
)

// Archiver cold-archives EVT-stream envelopes to an S3-compatible bucket
// (Cloudflare R2 in production), one object per ArchiveEnvelope call, and
// rotates old objects out of that bucket with RotateOld, following the
// archive-then-prune shape of internal/reliability's R2
// backup service — adapted here to stream small per-envelope objects
// instead of whole-database tarballs.
type Archiver struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	repo       *Repository
	log        zerolog.Logger
}

// NewArchiver builds an Archiver from an already-resolved aws-sdk-go-v2
// client. Callers construct the client via config.LoadDefaultConfig with
// an R2-compatible endpoint resolver.
func NewArchiver(client *s3.Client, bucket string, repo *Repository, log zerolog.Logger) *Archiver {
	return &Archiver{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		repo:     repo,
		log:      log.With().Str("component", "bus-archiver").Logger(),
	}
}

// objectKeyFor groups archived envelopes by calendar day so a single
// ListObjectsV2 prefix scan can find everything eligible for rotation.
func objectKeyFor(subject string, env Envelope, at time.Time) string {
	return fmt.Sprintf("evt/%s/%s/%s.msgpack", at.Format("2006-01-02"), strings.ReplaceAll(subject, ".", "_"), env.ID)
}

// ArchiveEnvelope uploads one EVT envelope to cold storage.
func (a *Archiver) ArchiveEnvelope(ctx context.Context, subject string, env Envelope, at time.Time) error {
	packed, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode envelope %s for archival: %w", env.ID, err)
	}
	key := objectKeyFor(subject, env, at)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(packed),
	})
	if err != nil {
		return fmt.Errorf("failed to upload envelope %s to %s: %w", env.ID, key, err)
	}
	return nil
}

// RotateOld deletes archived EVT objects oldest-first for as long as the
// bucket's total size is at or above retentionBytes or the object is older
// than retentionDays, stopping at the first object that is neither. A
// retentionDays of 0 disables age-based rotation; size-based rotation still
// applies, with evtRetentionBytes used when retentionBytes is not positive.
func (a *Archiver) RotateOld(ctx context.Context, retentionDays int, retentionBytes int64) error {
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String("evt/"),
	})

	type object struct {
		key  string
		size int64
		mod  time.Time
	}
	var objects []object
	var total int64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list archived envelopes: %w", err)
		}
		for _, o := range page.Contents {
			if o.Key == nil {
				continue
			}
			size := aws.ToInt64(o.Size)
			mod := aws.ToTime(o.LastModified)
			objects = append(objects, object{key: *o.Key, size: size, mod: mod})
			total += size
		}
	}

	if retentionBytes <= 0 {
		retentionBytes = evtRetentionBytes
	}
	if total < retentionBytes && retentionDays <= 0 {
		return nil
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].mod.Before(objects[j].mod) })

	var cutoff time.Time
	if retentionDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -retentionDays)
	}

	deleted := 0
	for _, o := range objects {
		overSize := total >= retentionBytes
		overAge := retentionDays > 0 && o.mod.Before(cutoff)
		if !overSize && !overAge {
			break
		}
		_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(o.key)})
		if err != nil {
			a.log.Error().Err(err).Str("key", o.key).Msg("failed to delete archived envelope")
			continue
		}
		total -= o.size
		deleted++
	}

	a.log.Info().Int("deleted", deleted).Int64("remaining_bytes", total).Msg("rotated cold-archived envelopes")
	return nil
}

// ArchiveKeyFromConfig resolves the archival bucket name from the
// registry, defaulting to a per-deployment bucket name when unset.
func ArchiveKeyFromConfig(registry *configregistry.Registry) (string, error) {
	bucket, err := registry.GetString("bus.evtArchiveBucket")
	if err != nil {
		return "", fmt.Errorf("failed to resolve evt archive bucket: %w", err)
	}
	return bucket, nil
}
