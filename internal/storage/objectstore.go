package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zeebo/blake3"

	"zblog/internal/models"
)

// Object key layout
const (
	recordPrefix = "records/"
	postPrefix   = "posts/"
	hashPrefix   = "hashes/"
)

// ObjectStoreConfig holds the S3 connection settings
type ObjectStoreConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PathStyle bool
}

// ObjectStore keeps post content in an S3-compatible bucket. Records are CBOR
// encoded and content addressed; post and hash keys point at them.
type ObjectStore struct {
	cl     *minio.Client
	bucket string
}

var recordEncMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano

	var err error
	recordEncMode, err = opts.EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}
}

// NewObjectStore connects to the bucket, creating it when missing
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}

	cl, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	exists, err := cl.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cl.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		slog.Info("Created content bucket", "bucket", cfg.Bucket)
	}

	return &ObjectStore{cl: cl, bucket: cfg.Bucket}, nil
}

// Ping checks that the bucket is reachable
func (s *ObjectStore) Ping(ctx context.Context) error {
	exists, err := s.cl.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// SaveContent writes the record body and points the post and hash keys at it
func (s *ObjectStore) SaveContent(ctx context.Context, record *models.StoredContent) error {
	body, key, err := encodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.put(ctx, key, body, "application/cbor"); err != nil {
		return fmt.Errorf("failed to save content record: %w", err)
	}
	if err := s.put(ctx, postPrefix+record.PostID, []byte(key), "text/plain"); err != nil {
		return fmt.Errorf("failed to save post pointer: %w", err)
	}
	if record.ContentHash != 0 {
		if err := s.put(ctx, hashKey(record.ContentHash), []byte(key), "text/plain"); err != nil {
			return fmt.Errorf("failed to save hash pointer: %w", err)
		}
	}
	return nil
}

func (s *ObjectStore) GetContent(ctx context.Context, postID string) (*models.StoredContent, error) {
	return s.follow(ctx, postPrefix+postID)
}

func (s *ObjectStore) GetContentByHash(ctx context.Context, contentHash uint64) (*models.StoredContent, error) {
	return s.follow(ctx, hashKey(contentHash))
}

// ListContents returns every record reachable from a post key
func (s *ObjectStore) ListContents(ctx context.Context) ([]*models.StoredContent, error) {
	keys, err := s.list(ctx, postPrefix)
	if err != nil {
		return nil, err
	}

	records := make([]*models.StoredContent, 0, len(keys))
	for _, key := range keys {
		record, err := s.follow(ctx, key)
		if errors.Is(err, models.ErrContentNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].PostID < records[j].PostID })
	return records, nil
}

// ClearContents removes every object written by the store
func (s *ObjectStore) ClearContents(ctx context.Context) error {
	for _, prefix := range []string{postPrefix, hashPrefix, recordPrefix} {
		keys, err := s.list(ctx, prefix)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := s.cl.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
				return fmt.Errorf("failed to remove %s: %w", key, err)
			}
		}
	}
	return nil
}

func (s *ObjectStore) follow(ctx context.Context, pointerKey string) (*models.StoredContent, error) {
	ref, err := s.get(ctx, pointerKey)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(string(ref))
	if !strings.HasPrefix(key, recordPrefix) {
		return nil, fmt.Errorf("malformed content pointer %s -> %q", pointerKey, key)
	}

	body, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decodeRecord(key, body)
}

func (s *ObjectStore) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.cl.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (s *ObjectStore) get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.cl.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFoundOr(err, key)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, notFoundOr(err, key)
	}
	return body, nil
}

func (s *ObjectStore) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for info := range s.cl.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, info.Err)
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}

func notFoundOr(err error, key string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return models.ErrContentNotFound
	}
	return fmt.Errorf("failed to read %s: %w", key, err)
}

func hashKey(contentHash uint64) string {
	return hashPrefix + strconv.FormatUint(contentHash, 10)
}

// encodeRecord returns the CBOR body of a record and its content address
func encodeRecord(record *models.StoredContent) ([]byte, string, error) {
	body, err := recordEncMode.Marshal(record)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode content record: %w", err)
	}
	sum := blake3.Sum256(body)
	return body, recordPrefix + hex.EncodeToString(sum[:]), nil
}

// decodeRecord decodes a record body and checks it against its address
func decodeRecord(key string, body []byte) (*models.StoredContent, error) {
	sum := blake3.Sum256(body)
	if recordPrefix+hex.EncodeToString(sum[:]) != key {
		return nil, fmt.Errorf("content record %s failed integrity check", key)
	}

	var record models.StoredContent
	if err := cbor.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to decode content record %s: %w", key, err)
	}
	return &record, nil
}
