package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"sort"
)

// Digest is a sha256 content hash used as a cache key.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports the unset digest.
func (d Digest) IsZero() bool { return d == Digest{} }

// combineDigest: H(content || dep1 || dep2 ...). deps уже в детерминированном порядке.
func combineDigest(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func digestBytes(parts ...[]byte) Digest {
	h := sha256.New()
	for _, p := range parts {
		_, _ = h.Write(p)
		_, _ = h.Write([]byte{0})
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// SourcesDigest hashes every regular file of fsys under root (path and
// content, in path order) together with the tool flags that turn them into an
// object. Changing a flag invalidates the cached object.
func SourcesDigest(fsys fs.FS, root string, flags ...string) (Digest, error) {
	var paths []string
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return Digest{}, err
	}
	sort.Strings(paths)

	fileDigests := make([]Digest, 0, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return Digest{}, err
		}
		fileDigests = append(fileDigests, digestBytes([]byte(p), data))
	}
	flagParts := make([][]byte, len(flags))
	for i, f := range flags {
		flagParts[i] = []byte(f)
	}
	return combineDigest(digestBytes(flagParts...), fileDigests...), nil
}
