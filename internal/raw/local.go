package raw

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cardlake/cardlake/pkg/types"
)

// LocalReader reads raw captures from a local data lake directory.
type LocalReader struct {
	root string
}

// NewLocalReader creates a reader rooted at dir.
func NewLocalReader(dir string) *LocalReader {
	return &LocalReader{root: dir}
}

// ListCaptures enumerates the capture files for a batch across both entity
// types. A missing partition for one entity is not an error; a batch with no
// captures at all is.
func (r *LocalReader) ListCaptures(_ context.Context, batchID string) ([]types.CaptureRef, error) {
	var refs []types.CaptureRef

	for _, entity := range []string{entityCards, entityPrices} {
		kind, _ := entityKind(entity)
		dir := filepath.Join(r.root, layoutPrefix, entity, partitionName+"="+batchID)

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &types.StorageFailure{Op: "list captures", Err: err}
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			info, err := entry.Info()
			ingestedAt := time.Time{}
			if err == nil {
				ingestedAt = info.ModTime().UTC()
			}
			refs = append(refs, types.CaptureRef{
				BatchID:    batchID,
				Kind:       kind,
				Key:        filepath.Join(dir, entry.Name()),
				IngestedAt: ingestedAt,
			})
		}
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("no captures found for batch %s under %s", batchID, r.root)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

// ReadCapture loads and decodes a single capture file.
func (r *LocalReader) ReadCapture(_ context.Context, ref types.CaptureRef) (*types.RawCapture, error) {
	data, err := os.ReadFile(ref.Key)
	if err != nil {
		return nil, &types.StorageFailure{Op: "read capture", Err: err}
	}

	payload, err := decodePayload(data, ref.Key)
	if err != nil {
		return nil, err
	}

	return &types.RawCapture{Ref: ref, Payload: payload}, nil
}
