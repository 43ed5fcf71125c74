// Package service contains the entity sync adapters and the account service.
//
// Every adapter mediates between the remote document store and the local
// mirror for one entity. Dual writes go remote first, then local; there is
// no rollback, so the outcome of each half is reported in a SyncResult.
package service

import (
	"go.uber.org/zap"

	"github.com/and161185/habithive/internal/errs"
)

// SyncResult reports both halves of a dual write.
type SyncResult struct {
	RemoteOK bool
	LocalOK  bool
	// LocalErr is the mirror failure, if any. It is set even when the
	// operation does not return it to the caller.
	LocalErr error
}

// Diverged reports whether the remote write landed but the mirror did not.
func (r SyncResult) Diverged() bool { return r.RemoteOK && !r.LocalOK }

// Source tells where a read was served from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// DivergenceSink is told about uids whose mirror missed a write to the named
// collection, so a reconciliation pass can repair them later.
type DivergenceSink interface {
	Diverged(uid, collection string)
}

type noopSink struct{}

func (noopSink) Diverged(string, string) {}

// core is shared by the adapters.
type core struct {
	log  *zap.Logger
	sink DivergenceSink
}

func newCore(log *zap.Logger, sink DivergenceSink) core {
	if log == nil {
		log = zap.NewNop()
	}
	if sink == nil {
		sink = noopSink{}
	}
	return core{log: log, sink: sink}
}

// mirrored builds the result of a dual write whose remote half succeeded.
// A mirror failure is logged and reported to the sink.
func (c core) mirrored(uid, collection, op string, localErr error) SyncResult {
	if localErr == nil {
		return SyncResult{RemoteOK: true, LocalOK: true}
	}
	localErr = errs.Local(op, localErr)
	c.log.Warn("mirror write failed",
		zap.String("op", op),
		zap.String("collection", collection),
		zap.String("uid", uid),
		zap.Error(localErr),
	)
	c.sink.Diverged(uid, collection)
	return SyncResult{RemoteOK: true, LocalErr: localErr}
}
