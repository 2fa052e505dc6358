// Package walog implements the storage engine's write-ahead log: an
// append-only file of length-prefixed, CRC32-checked transaction frames,
// each frame holding one committed transaction's op-count-prefixed op
// records (see record.go).
package walog

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/juju/errors"
)

// WAL is an append-only log file. Every append is optionally fsync'd,
// controlled by the Sync field so a caller can trade durability for
// throughput the way graphstore's Config.SyncWAL does.
type WAL struct {
	mu   sync.Mutex
	f    *os.File
	Sync bool
}

// Open opens or creates the WAL file at path for appending.
func Open(path string, sync bool) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Annotatef(err, "walog: open %s", path)
	}
	return &WAL{f: f, Sync: sync}, nil
}

// Append writes one length-prefixed, CRC-checked frame. Format:
// len(4, BigEndian) | data(len) | crc32(4, BigEndian).
func (w *WAL) Append(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.f.Write(header[:]); err != nil {
		return errors.Annotate(err, "walog: write length")
	}
	if _, err := w.f.Write(data); err != nil {
		return errors.Annotate(err, "walog: write payload")
	}

	binary.BigEndian.PutUint32(header[:], crc32.ChecksumIEEE(data))
	if _, err := w.f.Write(header[:]); err != nil {
		return errors.Annotate(err, "walog: write crc")
	}

	if !w.Sync {
		return nil
	}
	if err := w.f.Sync(); err != nil {
		return errors.Annotate(err, "walog: fsync")
	}
	return nil
}

// Replay reads every frame from the start of the file in order, verifying
// its CRC and invoking handler with the payload. It leaves the file
// positioned at end-of-file for subsequent Append calls, and is meant to
// be called once, at startup, before any writer begins appending.
func (w *WAL) Replay(handler func(payload []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return errors.Annotate(err, "walog: seek to start")
	}

	var lenBuf, crcBuf [4]byte
	for {
		if _, err := io.ReadFull(w.f, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return errors.Annotate(err, "walog: read length")
		}
		length := binary.BigEndian.Uint32(lenBuf[:])

		payload := make([]byte, length)
		if _, err := io.ReadFull(w.f, payload); err != nil {
			return errors.Annotate(err, "walog: read payload (truncated log?)")
		}

		if _, err := io.ReadFull(w.f, crcBuf[:]); err != nil {
			return errors.Annotate(err, "walog: read crc")
		}
		want := binary.BigEndian.Uint32(crcBuf[:])
		if got := crc32.ChecksumIEEE(payload); got != want {
			return errors.Errorf("walog: crc mismatch at frame (want %x, got %x)", want, got)
		}

		if err := handler(payload); err != nil {
			return err
		}
	}

	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return errors.Annotate(err, "walog: seek to end")
	}
	return nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	return w.f.Close()
}
