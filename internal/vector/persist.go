package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ganitha/ganitha/internal/models"
	"github.com/ganitha/ganitha/pkg/utils"
)

// Save persists the current snapshot to path. Directory is created if needed.
// Format: dimensions (4), n (4), then per item: idLen (4), id bytes,
// topicLen (4), topic bytes, difficulty (4), typeLen (4), type bytes,
// vector (dimensions*4 bytes). All integers little-endian.
func (idx *Index) Save(path string) error {
	if path == "" {
		return nil
	}
	snap := idx.snap.Load()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, uint32(idx.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(snap.items))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i := range snap.items {
		it := &snap.items[i]
		if err := writeString(w, it.ID); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := writeString(w, it.TopicID); err != nil {
			return fmt.Errorf("write topic: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, int32(it.Difficulty)); err != nil {
			return fmt.Errorf("write difficulty: %w", err)
		}
		if err := writeString(w, string(it.Type)); err != nil {
			return fmt.Errorf("write content type: %w", err)
		}
		if _, err := w.Write(utils.Float32sToBytes(it.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return w.Flush()
}

// Load reads the index from path and replaces the snapshot. Dimensions must
// match. If the file does not exist, the index is left unchanged.
func (idx *Index) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != idx.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d",
			models.ErrDimensionMismatch, dim, idx.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	capHint := n
	if capHint > 1<<20 {
		capHint = 1 << 20
	}
	items := make([]Item, 0, capHint)
	buf := make([]byte, idx.dimensions*4)
	for i := uint32(0); i < n; i++ {
		id, err := readString(r)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		topic, err := readString(r)
		if err != nil {
			return fmt.Errorf("read topic: %w", err)
		}
		var difficulty int32
		if err := binary.Read(r, binary.LittleEndian, &difficulty); err != nil {
			return fmt.Errorf("read difficulty: %w", err)
		}
		ctype, err := readString(r)
		if err != nil {
			return fmt.Errorf("read content type: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		items = append(items, Item{
			ID:         id,
			TopicID:    topic,
			Difficulty: int(difficulty),
			Type:       models.ContentType(ctype),
			Vector:     utils.BytesToFloat32s(buf),
		})
	}

	idx.writeMu.Lock()
	idx.snap.Store(&snapshot{items: items})
	idx.writeMu.Unlock()
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// maxStringLen bounds the length prefix of id/topic/type fields so a corrupt
// file cannot force an arbitrarily large allocation.
const maxStringLen = 1 << 16

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit %d", n, maxStringLen)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
