package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// entryNamespace scopes the name-based ids of index entries
var entryNamespace = uuid.MustParse("6f1c2a9e-3d4b-5c8e-9a0f-1b2c3d4e5f60")

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// EntryID derives a stable id from a source path and chunk index, so that
// re-indexing the same file overwrites its previous entries.
func EntryID(source string, chunkIndex int) string {
	name := filepath.Clean(source) + "#" + strconv.Itoa(chunkIndex)
	return uuid.NewSHA1(entryNamespace, []byte(name)).String()
}

// CreateFolder creates path and its parents if missing
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", path, err)
	}
	return nil
}

// pretty print
func PrettyPrint(w io.Writer, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Fprintln(w, string(b))
}
