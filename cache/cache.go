// Package cache stores generated shader source in a bbolt database, keyed
// by a hash of everything that affects the output.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/gogpu/shade"
	"github.com/gogpu/shade/builtin"
	"github.com/gogpu/shade/lang"
)

// Version is mixed into every key and stored in the database. Opening a
// database written with another version drops its entries.
const Version = "shade-cache/2"

const (
	bucketOutputs = "outputs"
	bucketMeta    = "meta"
	keyVersion    = "version"
)

// ErrCorrupt is returned for an entry that cannot be decoded.
var ErrCorrupt = errors.New("cache: corrupt entry")

// Cache is an on-disk compile cache. It is safe for concurrent use.
type Cache struct {
	db *bolt.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: open %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return err
		}
		if v := meta.Get([]byte(keyVersion)); v != nil && string(v) != Version {
			shade.Logger().Debug("cache: dropping entries of another version", "path", path, "version", string(v))
			if err := tx.DeleteBucket([]byte(bucketOutputs)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
		}
		if err := meta.Put([]byte(keyVersion), []byte(Version)); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists([]byte(bucketOutputs))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: initialize %q: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key returns the SHA-256 key of compiling fragments for target with opts.
// Only the options of target are hashed. The built-in table is hashed by
// content, and with opts.Prelude the prelude fragments are hashed as well.
func Key(fragments []shade.CodeFragment, target shade.Target, opts shade.CompileOptions) []byte {
	h := sha256.New()
	writeString(h, Version)
	writeString(h, target.String())
	switch target {
	case shade.TargetGLSL:
		writeString(h, fmt.Sprintf("%+v", opts.GLSL))
	case shade.TargetHLSL:
		writeString(h, fmt.Sprintf("%+v", opts.HLSL))
	case shade.TargetMSL:
		writeString(h, fmt.Sprintf("%+v", opts.MSL))
	}
	if opts.Builtins == nil {
		h.Write(defaultBuiltins())
	} else {
		h.Write(builtinsDigest(opts.Builtins))
	}
	if opts.Prelude {
		fragments = append(shade.Prelude(), fragments...)
	}
	var n [binary.MaxVarintLen64]byte
	h.Write(n[:binary.PutUvarint(n[:], uint64(len(fragments)))])
	for _, f := range fragments {
		writeString(h, f.Filename)
		h.Write(n[:binary.PutVarint(n[:], int64(f.Line))])
		h.Write(n[:binary.PutVarint(n[:], int64(f.Col))])
		writeString(h, f.Code)
	}
	return h.Sum(nil)
}

var defaultBuiltins = sync.OnceValue(func() []byte {
	return builtinsDigest(builtin.Default())
})

// builtinsDigest hashes every overload of table in name order.
func builtinsDigest(table builtin.Table) []byte {
	h := sha256.New()
	names := table.Names()
	var n [binary.MaxVarintLen64]byte
	h.Write(n[:binary.PutUvarint(n[:], uint64(len(names)))])
	for _, name := range names {
		b, _ := table.Lookup(lang.NewIdent(name))
		writeString(h, name)
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(b.Overloads)))])
		for _, sig := range b.Overloads {
			writeString(h, sig.String())
		}
	}
	return h.Sum(nil)
}

// writeString writes s length-prefixed so adjacent strings cannot collide.
func writeString(w io.Writer, s string) {
	var n [binary.MaxVarintLen64]byte
	w.Write(n[:binary.PutUvarint(n[:], uint64(len(s)))])
	io.WriteString(w, s)
}

// Get returns the cached output for key.
func (c *Cache) Get(key []byte) (shade.Output, bool, error) {
	var (
		out   shade.Output
		found bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketOutputs)).Get(key)
		if v == nil {
			return nil
		}
		found = true
		var err error
		out, err = decode(v)
		return err
	})
	if err != nil {
		return shade.Output{}, false, err
	}
	return out, found, nil
}

// Put stores out under key.
func (c *Cache) Put(key []byte, out shade.Output) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketOutputs)).Put(key, encode(out))
	})
}

// Len returns the number of entries.
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketOutputs)).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketOutputs)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketOutputs))
		return err
	})
}

// Compile returns the cached output of shade.Compile, compiling and
// storing it on a miss. Failed compilations are not cached.
func (c *Cache) Compile(fragments []shade.CodeFragment, target shade.Target, opts shade.CompileOptions) (shade.Output, error) {
	key := Key(fragments, target, opts)
	out, ok, err := c.Get(key)
	if err != nil {
		return shade.Output{}, err
	}
	if ok {
		shade.Logger().Debug("cache: hit", "target", target, "key", fmt.Sprintf("%x", key[:8]))
		return out, nil
	}
	shade.Logger().Debug("cache: miss", "target", target, "key", fmt.Sprintf("%x", key[:8]))

	out, err = shade.Compile(fragments, target, opts)
	if err != nil {
		return shade.Output{}, err
	}
	if err := c.Put(key, out); err != nil {
		return shade.Output{}, err
	}
	return out, nil
}

// An entry is the vertex text length as a uvarint followed by the vertex
// and pixel text.
func encode(out shade.Output) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(out.Vertex)))
	buf = append(buf, out.Vertex...)
	return append(buf, out.Pixel...)
}

func decode(v []byte) (shade.Output, error) {
	n, size := binary.Uvarint(v)
	if size <= 0 || n > uint64(len(v)-size) {
		return shade.Output{}, ErrCorrupt
	}
	rest := v[size:]
	return shade.Output{Vertex: string(rest[:n]), Pixel: string(rest[n:])}, nil
}
