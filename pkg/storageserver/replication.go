package storageserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/dnfs-project/dnfs/internal/logger"
	"github.com/dnfs-project/dnfs/internal/wire"
)

// replicationJobKind distinguishes the two propagation jobs the worker
// handles (spec.md §4.4).
type replicationJobKind int

const (
	jobUpdate replicationJobKind = iota
	jobDelete
)

type replicationJob struct {
	kind     replicationJobKind
	filename string
	attempt  int
}

// BackupTarget is resolved once per job by the server from its current
// view of the backup ring; it may change between retries if the ring is
// recomputed.
type BackupTarget func() (ip string, replPort uint32, ok bool)

// ReplicationWorker is the storage server's single background worker that
// drains a bounded-retry job queue and pushes file updates/deletes to the
// current backup (spec.md §4.4).
type ReplicationWorker struct {
	store      *Store
	target     BackupTarget
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
	dialFn     func(ctx context.Context, network, addr string) (net.Conn, error)

	queue chan replicationJob

	onFailure func()
	onDepth   func(n int)
}

// NewReplicationWorker constructs a worker with the given queue capacity.
// target is consulted fresh on every attempt so it reflects the current
// backup ring.
func NewReplicationWorker(store *Store, target BackupTarget, logger *slog.Logger, maxRetries, queueSize int, backoff time.Duration) *ReplicationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplicationWorker{
		store:      store,
		target:     target,
		logger:     logger,
		maxRetries: maxRetries,
		backoff:    backoff,
		dialFn: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
		queue: make(chan replicationJob, queueSize),
	}
}

// SetCallbacks wires optional metrics hooks: onFailure fires when a job
// exhausts its retries, onDepth fires whenever the queue length changes.
func (w *ReplicationWorker) SetCallbacks(onFailure func(), onDepth func(n int)) {
	w.onFailure = onFailure
	w.onDepth = onDepth
}

func (w *ReplicationWorker) reportDepth() {
	if w.onDepth != nil {
		w.onDepth(len(w.queue))
	}
}

// EnqueueUpdate implements Replicator.
func (w *ReplicationWorker) EnqueueUpdate(filename string) {
	w.enqueue(replicationJob{kind: jobUpdate, filename: filename})
}

// EnqueueDelete implements Replicator.
func (w *ReplicationWorker) EnqueueDelete(filename string) {
	w.enqueue(replicationJob{kind: jobDelete, filename: filename})
}

func (w *ReplicationWorker) enqueue(job replicationJob) {
	if w == nil {
		return
	}
	select {
	case w.queue <- job:
	default:
		w.logger.Warn("replication queue full, dropping job", logger.Filename(job.filename))
	}
	w.reportDepth()
}

// Run drains the queue until ctx is cancelled. It is meant to be run in
// its own goroutine, one per storage server (spec.md §5).
func (w *ReplicationWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.queue:
			w.reportDepth()
			w.process(ctx, job)
		}
	}
}

func (w *ReplicationWorker) process(ctx context.Context, job replicationJob) {
	if m, ok := w.store.meta.Get(job.filename); ok && m.IsBackup {
		return
	}
	ip, port, ok := w.target()
	if !ok {
		return
	}

	var err error
	switch job.kind {
	case jobUpdate:
		err = w.sendUpdate(ctx, ip, port, job.filename)
	case jobDelete:
		err = w.sendDelete(ctx, ip, port, job.filename)
	}
	if err == nil {
		return
	}

	job.attempt++
	if job.attempt >= w.maxRetries {
		w.logger.Warn("replication job exhausted retries", logger.Filename(job.filename), logger.Err(err))
		if w.onFailure != nil {
			w.onFailure()
		}
		return
	}
	w.logger.Info("replication job failed, retrying", logger.Filename(job.filename), logger.Attempt(job.attempt), logger.Err(err))
	time.Sleep(w.backoff)
	w.enqueue(job)
}

func (w *ReplicationWorker) sendUpdate(ctx context.Context, ip string, port uint32, filename string) error {
	m, ok := w.store.meta.Get(filename)
	if !ok {
		return fmt.Errorf("replication: no metadata for %s", filename)
	}
	fl := w.store.locks.Get(filename)
	fl.Coarse.RLock()
	content, err := os.ReadFile(w.store.filePath(filename))
	fl.Coarse.RUnlock()
	if err != nil {
		return err
	}

	conn, err := w.dialFn(ctx, "tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return err
	}
	defer conn.Close()

	msg := &wire.ReplicateFile{Filename: filename, Owner: m.Owner, Data: content}
	if err := wire.WriteMessage(conn, wire.TypeReplicateFile, msg.Marshal()); err != nil {
		return err
	}
	return awaitAck(conn)
}

func (w *ReplicationWorker) sendDelete(ctx context.Context, ip string, port uint32, filename string) error {
	conn, err := w.dialFn(ctx, "tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return err
	}
	defer conn.Close()

	msg := &wire.ReplicateFile{Filename: filename, Deleted: true}
	if err := wire.WriteMessage(conn, wire.TypeReplicateFile, msg.Marshal()); err != nil {
		return err
	}
	return awaitAck(conn)
}

func awaitAck(conn net.Conn) error {
	t, payload, err := wire.ReadMessage(conn)
	if err != nil {
		return err
	}
	if t != wire.TypeAckOK {
		fail, err := wire.DecodeAckFail(payload)
		if err == nil {
			return fmt.Errorf("replication: peer rejected: %s", fail.Message)
		}
		return fmt.Errorf("replication: unexpected response type %d", t)
	}
	return nil
}

// ApplyReplicatedFile is the receiver-side half of replication: it
// overwrites (or removes) the local copy of filename and upserts its
// metadata with IsBackup set, per spec.md §4.4.
func (s *Store) ApplyReplicatedFile(msg *wire.ReplicateFile) error {
	fl := s.locks.Get(msg.Filename)
	fl.Coarse.Lock()
	defer fl.Coarse.Unlock()

	if msg.Deleted {
		_ = os.Remove(s.filePath(msg.Filename))
		_ = os.Remove(s.undoPath(msg.Filename))
		s.meta.Delete(msg.Filename)
		return s.SaveMetadata()
	}

	if err := os.WriteFile(s.filePath(msg.Filename), msg.Data, 0o644); err != nil {
		return err
	}
	sentences := SplitSentences(string(msg.Data))
	var words uint64
	for _, sent := range sentences {
		words += uint64(len(SplitWords(sent)))
	}
	now := time.Now().Unix()
	existing, existed := s.meta.Get(msg.Filename)
	access := now
	if existed {
		access = existing.AccessUnix
	}
	s.meta.Put(Metadata{
		Filename:     msg.Filename,
		Owner:        msg.Owner,
		Size:         uint64(len(msg.Data)),
		Words:        words,
		Chars:        uint64(len([]rune(string(msg.Data)))),
		ModifiedUnix: now,
		AccessUnix:   access,
		IsBackup:     true,
	})
	return s.SaveMetadata()
}
