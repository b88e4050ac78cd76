package storage

import (
	"github.com/arcsign/walletcore/corechain"
)

// BlobFileService adapts a BlobStore to the corechain.FileService interface:
// blobs are stored under "<type>/<hash-hex>" keys, so one flat key space
// serves every blob category without per-type buckets.
type BlobFileService struct {
	store BlobStore
}

// NewBlobFileService wraps store as a corechain.FileService.
func NewBlobFileService(store BlobStore) *BlobFileService {
	return &BlobFileService{store: store}
}

func blobKey(typ corechain.BlobType, key corechain.Hash) string {
	return string(typ) + "/" + key.String()
}

func (s *BlobFileService) Put(typ corechain.BlobType, key corechain.Hash, blob []byte) error {
	return s.store.Put(blobKey(typ, key), blob)
}

func (s *BlobFileService) Get(typ corechain.BlobType, key corechain.Hash) ([]byte, bool, error) {
	v, err := s.store.Get(blobKey(typ, key))
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (s *BlobFileService) Delete(typ corechain.BlobType, key corechain.Hash) error {
	return s.store.Delete(blobKey(typ, key))
}

// All returns every blob of the given type, keyed by hash. Keys whose hash
// segment does not parse are skipped rather than failing the whole scan.
func (s *BlobFileService) All(typ corechain.BlobType) (map[corechain.Hash][]byte, error) {
	prefix := string(typ) + "/"
	raw, err := s.store.All(prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[corechain.Hash][]byte, len(raw))
	for k, v := range raw {
		h, err := corechain.HashFromHex(k[len(prefix):])
		if err != nil {
			continue
		}
		out[h] = v
	}
	return out, nil
}

var _ corechain.FileService = (*BlobFileService)(nil)
