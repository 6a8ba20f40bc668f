package coldstorage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mnemo-db/mnemo/pkg/mnemoerr"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// S3Client is the subset of *s3.Client the S3 cold store depends on,
// so tests can supply a fake without spinning up a real bucket.
type S3Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 is the production cold-storage implementation: objects at
// `{prefix}/{agent_id}/{id}.json` in an S3-compatible bucket (spec
// §4.9). Grounded on the aws-sdk-go-v2/service/s3 client used
// elsewhere in the example pack for object storage (see DESIGN.md).
type S3 struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 constructs an S3-backed cold store.
func NewS3(client S3Client, bucket, prefix string) *S3 {
	if prefix == "" {
		prefix = "cold"
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) Archive(ctx context.Context, record *model.MemoryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return mnemoerr.Internal("marshaling memory for cold storage", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(s.prefix, record.AgentID, record.ID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return mnemoerr.Storage("archiving memory to s3", err)
	}
	return nil
}

// Restore requires the agent id, unlike InMemory.Restore, since the S3
// key is addressed by {prefix}/{agent_id}/{id}.json and object storage
// has no secondary index from id alone; callers scan with
// ListArchived first when the agent is unknown.
func (s *S3) RestoreForAgent(ctx context.Context, agentID, id string) (*model.MemoryRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key(s.prefix, agentID, id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, mnemoerr.NotFound("archived memory %q", id)
		}
		return nil, mnemoerr.Storage("fetching memory from s3", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, mnemoerr.Storage("reading s3 object body", err)
	}
	var m model.MemoryRecord
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, mnemoerr.Internal("unmarshaling archived memory", err)
	}
	return &m, nil
}

// Restore implements Store by listing every archived record under the
// configured prefix and returning the one whose id matches.
func (s *S3) Restore(ctx context.Context, id string) (*model.MemoryRecord, error) {
	records, err := s.ListArchived(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, mnemoerr.NotFound("archived memory %q", id)
}

func (s *S3) ListArchived(ctx context.Context, agentID string, limit int) ([]*model.MemoryRecord, error) {
	prefix := s.prefix + "/"
	if agentID != "" {
		prefix += agentID + "/"
	}
	var out []*model.MemoryRecord
	var continuation *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, mnemoerr.Storage("listing archived memories", err)
		}
		for _, obj := range resp.Contents {
			getOut, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: obj.Key})
			if err != nil {
				continue
			}
			data, err := io.ReadAll(getOut.Body)
			getOut.Body.Close()
			if err != nil {
				continue
			}
			var m model.MemoryRecord
			if err := json.Unmarshal(data, &m); err != nil {
				continue
			}
			out = append(out, &m)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		continuation = resp.NextContinuationToken
	}
	return out, nil
}

func (s *S3) DeleteArchived(ctx context.Context, id string) error {
	records, err := s.ListArchived(ctx, "", 0)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ID != id {
			continue
		}
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(Key(s.prefix, r.AgentID, r.ID)),
		})
		if err != nil {
			return mnemoerr.Storage("deleting archived memory", err)
		}
		return nil
	}
	return mnemoerr.NotFound("archived memory %q", id)
}

func (s *S3) IsArchived(ctx context.Context, id string) (bool, error) {
	_, err := s.Restore(ctx, id)
	if err != nil {
		if mnemoerr.KindOf(err) == mnemoerr.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var _ Store = (*S3)(nil)
