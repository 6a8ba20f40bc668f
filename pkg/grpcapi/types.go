package grpcapi

import (
	"github.com/mnemo-db/mnemo/pkg/hashchain"
	"github.com/mnemo-db/mnemo/pkg/model"
)

// GetMemoryRequest is the input to GetMemory. The query engine has no
// such operation of its own — pkg/api.handleGetMemory reads straight
// from storage, and this service does the same.
type GetMemoryRequest struct {
	ID string
}

// GetMemoryResponse wraps the stored record.
type GetMemoryResponse struct {
	Record *model.MemoryRecord
}

// VerifyResponse combines Verify's two hash-chain results into a
// single message, since a unary gRPC method returns one value.
type VerifyResponse struct {
	Memories hashchain.VerifyResult
	Events   hashchain.VerifyResult
}

// CheckpointResponse wraps the checkpoint returned by Checkpoint,
// Branch, and Merge, all of which return a bare *model.Checkpoint at
// the query-engine layer.
type CheckpointResponse struct {
	Checkpoint *model.Checkpoint
}

// DelegationResponse wraps the delegation returned by Delegate.
type DelegationResponse struct {
	Delegation *model.Delegation
}
