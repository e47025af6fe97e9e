package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/tendermint/nodecore/pkg/chain"
)

// AuditConsumer writes every input's raw wire bytes to disk before the
// rest of the chain runs, so a node operator can replay exactly what was
// received during a given boot. It always continues the chain; the only
// thing that stops an element is a write failure, which aborts with
// AbortStatefulFailure since a missing audit record is a node-local
// fault, not a property of the input itself.
type AuditConsumer struct {
	dir string
}

// NewAuditConsumer builds an AuditConsumer rooted at
// <dataDir>/audit/<dispatcherName>/<bootTimestamp>/, creating the
// directory immediately so a dispatcher that never receives traffic
// still leaves evidence it was configured to audit.
func NewAuditConsumer(dataDir, dispatcherName string, bootTime time.Time) (*AuditConsumer, error) {
	dir := filepath.Join(dataDir, "audit", dispatcherName, bootTime.UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "audit: create directory")
	}
	return &AuditConsumer{dir: dir}, nil
}

func (a *AuditConsumer) Name() string { return "AuditConsumer" }

func (a *AuditConsumer) Process(_ context.Context, input *chain.ConsumerInput) (Result, error) {
	if len(input.Raw) == 0 {
		return ResultContinue(), nil
	}

	path := filepath.Join(a.dir, fmt.Sprintf("%020d", uint64(input.ID)))
	if err := os.WriteFile(path, input.Raw, 0o644); err != nil {
		return ResultAbort(chain.AbortStatefulFailure), errors.Wrap(err, "audit: write record")
	}

	return ResultContinue(), nil
}
