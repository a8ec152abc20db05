package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/veralis-labs/kbindex/internal/core/ports/driven"
)

// Snapshot file layout (little-endian):
//
//	magic   [4]byte  "KBIX"
//	version uint32
//	dim     uint32
//	count   uint32
//	entries count times:
//	    idLen  uint16
//	    id     idLen bytes
//	    vector dim float32
var snapshotMagic = [4]byte{'K', 'B', 'I', 'X'}

const snapshotVersion = 1

// writeSnapshotFile persists a snapshot atomically: the file is
// written to a temporary sibling and renamed into place, so readers
// never see a partial snapshot on disk.
func writeSnapshotFile(path string, snap *driven.IndexSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) // No-op after successful rename

	w := bufio.NewWriter(tmp)

	if _, err := w.Write(snapshotMagic[:]); err != nil {
		tmp.Close()
		return err
	}
	for _, v := range []uint32{snapshotVersion, uint32(snap.Dimension), uint32(len(snap.Entries))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			tmp.Close()
			return err
		}
	}

	for _, e := range snap.Entries {
		if len(e.ChunkID) > math.MaxUint16 {
			tmp.Close()
			return fmt.Errorf("chunk id too long: %d bytes", len(e.ChunkID))
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(e.ChunkID))); err != nil {
			tmp.Close()
			return err
		}
		if _, err := w.WriteString(e.ChunkID); err != nil {
			tmp.Close()
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, e.Vector); err != nil {
			tmp.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("swap snapshot: %w", err)
	}
	return nil
}

// readSnapshotFile loads a snapshot, returning nil when the file does
// not exist.
func readSnapshotFile(path string) (*driven.IndexSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != snapshotMagic {
		return nil, fmt.Errorf("not a snapshot file: bad magic")
	}

	var version, dim, count uint32
	for _, p := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, err
		}
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}

	snap := &driven.IndexSnapshot{
		Dimension: int(dim),
		Entries:   make([]driven.IndexEntry, 0, count),
	}

	for i := uint32(0); i < count; i++ {
		var idLen uint16
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("entry %d id: %w", i, err)
		}
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("entry %d vector: %w", i, err)
		}
		snap.Entries = append(snap.Entries, driven.IndexEntry{ChunkID: string(id), Vector: vec})
	}

	return snap, nil
}
