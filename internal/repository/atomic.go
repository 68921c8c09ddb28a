package repository

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

const filePerm = 0o644

// writeFileAtomic replaces path in one step (temp file, fsync, rename), so a
// crash leaves either the old or the new content on disk.
func writeFileAtomic(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeJSONArrayAtomic encodes items as an indented JSON array. A nil slice
// is written as [] rather than null.
func writeJSONArrayAtomic[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	b, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFileAtomic(path, append(b, '\n'))
}

// readFileIfExists returns nil content when the file is absent.
func readFileIfExists(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}
