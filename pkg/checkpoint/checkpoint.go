// Package checkpoint persists call trees as lz4-compressed files so a later
// run can resume accumulating on top of them.
package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/perfgraph/pkg/graph"
)

// Ext is the file extension of checkpoint files.
const Ext = ".pgc"

// ErrNotFound indicates a checkpoint does not exist.
var ErrNotFound = errors.New("checkpoint not found")

// Header is written ahead of the tree and identifies the run that produced it.
type Header struct {
	RunID    uuid.UUID `json:"run_id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Hostname string    `json:"hostname"`
	Sections int       `json:"sections"`
}

// Store keeps checkpoints in a directory.
type Store struct {
	dir string
	log *logrus.Logger
	now func() time.Time
}

// DefaultDir returns the default checkpoint directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".perfgraph/checkpoints"
	}
	return filepath.Join(home, ".perfgraph", "checkpoints")
}

// NewStore creates a store rooted at dir, DefaultDir when empty.
func NewStore(dir string, logger *logrus.Logger) *Store {
	if dir == "" {
		dir = DefaultDir()
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Store{dir: dir, log: logger, now: time.Now}
}

// Dir returns the directory checkpoints are kept in.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file a checkpoint name maps to.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+Ext)
}

// Save writes the recorder's tree under name. The file is replaced atomically.
func (s *Store) Save(name string, rec *graph.Recorder) (Header, error) {
	hostname, _ := os.Hostname()
	h := Header{
		RunID:    uuid.New(),
		Name:     name,
		Created:  s.now().UTC(),
		Hostname: hostname,
		Sections: rec.Registry().Len(),
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Header{}, fmt.Errorf("cannot create checkpoint directory: %w", err)
	}
	f, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return Header{}, fmt.Errorf("cannot create checkpoint: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := write(f, h, rec); err != nil {
		f.Close()
		return Header{}, err
	}
	if err := f.Close(); err != nil {
		return Header{}, fmt.Errorf("cannot write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.Path(name)); err != nil {
		return Header{}, fmt.Errorf("cannot write checkpoint: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"name":   name,
		"run_id": h.RunID,
		"path":   s.Path(name),
	}).Info("Saved checkpoint")
	return h, nil
}

func write(w io.Writer, h Header, rec *graph.Recorder) error {
	zw := lz4.NewWriter(w)
	_ = zw.Apply(lz4.CompressionLevelOption(lz4.Level9))
	if err := json.NewEncoder(zw).Encode(h); err != nil {
		return fmt.Errorf("cannot encode checkpoint header: %w", err)
	}
	if err := rec.Store(zw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("cannot compress checkpoint: %w", err)
	}
	return nil
}

// Load adds the tree saved under name onto the recorder's tree.
func (s *Store) Load(name string, rec *graph.Recorder) (Header, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Header{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return Header{}, fmt.Errorf("cannot open checkpoint %q: %w", name, err)
	}
	defer f.Close()

	h, err := read(f, rec)
	if err != nil {
		return Header{}, fmt.Errorf("cannot load checkpoint %q: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{
		"name":    name,
		"run_id":  h.RunID,
		"created": h.Created,
	}).Info("Loaded checkpoint")
	return h, nil
}

func read(r io.Reader, rec *graph.Recorder) (Header, error) {
	br := bufio.NewReader(lz4.NewReader(r))
	line, err := br.ReadBytes('\n')
	if err != nil {
		return Header{}, fmt.Errorf("cannot read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("cannot parse header: %w", err)
	}
	if err := rec.Load(br); err != nil {
		return Header{}, err
	}
	return h, nil
}

// List returns the names of all saved checkpoints, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == Ext {
			names = append(names, strings.TrimSuffix(e.Name(), Ext))
		}
	}
	sort.Strings(names)
	return names, nil
}
