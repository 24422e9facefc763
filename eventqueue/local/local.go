// Package local implements eventqueue.Queue as a single append-only file
// per deployment: a 4-byte big-endian length prefix followed by a
// gob-encoded types.QueueEventWithMeta record, fsynced on every append
// (spec.md §6). A companion offset file tracks lastProcessedOffset,
// flushed on ack.
package local

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nimbusdex/matcher/core/apperrors"
	"github.com/nimbusdex/matcher/eventqueue"
	"github.com/nimbusdex/matcher/types"
)

const offsetFileSuffix = ".offset"

// Queue is the local, single-file EventQueue transport.
type Queue struct {
	mu sync.Mutex

	logPath    string
	offsetPath string

	logFile *os.File

	lastOffset     uint64
	lastProcessed  uint64
	seenRequestIDs map[string]uint64 // requestID -> offset, rebuilt from the log on Open

	closed bool
}

// Open opens (creating if absent) the log file under dataDir and replays
// it once to recover lastOffset, the offset index used for idempotent
// Append retries, and the last acknowledged offset from the companion
// offset file.
func Open(dataDir string) (*Queue, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("eventqueue/local: prepare data dir: %w", err)
	}
	logPath := filepath.Join(dataDir, "events.log")
	offsetPath := logPath + offsetFileSuffix

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, apperrors.QueueUnavailable(err)
	}

	q := &Queue{
		logPath:        logPath,
		offsetPath:     offsetPath,
		logFile:        f,
		seenRequestIDs: make(map[string]uint64),
	}
	if err := q.replayIndex(); err != nil {
		f.Close()
		return nil, err
	}
	q.lastProcessed = q.readOffsetFile()
	return q, nil
}

func (q *Queue) replayIndex() error {
	if _, err := q.logFile.Seek(0, io.SeekStart); err != nil {
		return apperrors.QueueUnavailable(err)
	}
	r := q.logFile
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternalInvariant, "eventqueue/local: corrupt log tail", err)
		}
		q.lastOffset = rec.Offset
		if rec.Event.RequestID != "" {
			q.seenRequestIDs[rec.Event.RequestID] = rec.Offset
		}
	}
	if _, err := q.logFile.Seek(0, io.SeekEnd); err != nil {
		return apperrors.QueueUnavailable(err)
	}
	return nil
}

func (q *Queue) readOffsetFile() uint64 {
	data, err := os.ReadFile(q.offsetPath)
	if err != nil || len(data) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

func (q *Queue) writeOffsetFile(offset uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], offset)
	return os.WriteFile(q.offsetPath, b[:], 0o644)
}

func readRecord(r io.Reader) (types.QueueEventWithMeta, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return types.QueueEventWithMeta{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return types.QueueEventWithMeta{}, io.ErrUnexpectedEOF
	}
	var rec types.QueueEventWithMeta
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&rec); err != nil {
		return types.QueueEventWithMeta{}, err
	}
	return rec, nil
}

func writeRecord(w io.Writer, rec types.QueueEventWithMeta) error {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(rec); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(body.Len()))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// Append implements eventqueue.Queue. A repeated requestID is detected
// against the in-memory index built at Open and returns the offset
// already assigned, without writing a duplicate record.
func (q *Queue) Append(_ context.Context, event types.QueueEvent, requestID string) (uint64, uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, 0, apperrors.QueueUnavailable(fmt.Errorf("eventqueue/local: closed"))
	}
	if requestID != "" {
		if offset, ok := q.seenRequestIDs[requestID]; ok {
			return offset, 0, nil
		}
	}
	offset := q.lastOffset + 1
	ts := uint64(time.Now().UnixNano())
	rec := types.QueueEventWithMeta{Offset: offset, Timestamp: ts, Event: event}
	if err := writeRecord(q.logFile, rec); err != nil {
		return 0, 0, apperrors.QueueUnavailable(err)
	}
	if err := q.logFile.Sync(); err != nil {
		return 0, 0, apperrors.QueueUnavailable(err)
	}
	q.lastOffset = offset
	if requestID != "" {
		q.seenRequestIDs[requestID] = offset
	}
	return offset, ts, nil
}

func (q *Queue) LastEventOffset(_ context.Context) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastOffset, nil
}

func (q *Queue) LastProcessedOffset(_ context.Context) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastProcessed, nil
}

// StartConsume streams every record from fromOffset to the current
// lastOffset, then blocks polling for new appends until ctx is
// cancelled. Handler's return value acknowledges: on success,
// lastProcessed advances and is flushed to the offset file.
func (q *Queue) StartConsume(ctx context.Context, fromOffset uint64, handler eventqueue.Handler) error {
	f, err := os.Open(q.logPath)
	if err != nil {
		return apperrors.QueueUnavailable(err)
	}
	defer f.Close()

	var skipped uint64
	for {
		rec, err := readRecord(f)
		if err == io.EOF {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternalInvariant, "eventqueue/local: corrupt log", err)
		}
		if rec.Offset < fromOffset {
			skipped++
			continue
		}
		if err := handler(rec); err != nil {
			return err
		}
		q.mu.Lock()
		q.lastProcessed = rec.Offset
		werr := q.writeOffsetFile(rec.Offset)
		q.mu.Unlock()
		if werr != nil {
			return apperrors.QueueUnavailable(werr)
		}
	}
}

func (q *Queue) Close(timeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- q.logFile.Close() }()
	select {
	case err := <-done:
		q.closed = true
		if err != nil {
			return apperrors.QueueUnavailable(err)
		}
		return nil
	case <-time.After(timeout):
		return apperrors.Timeout("eventqueue/local: close timed out")
	}
}

var _ eventqueue.Queue = (*Queue)(nil)
