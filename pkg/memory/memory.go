// Package memory provides resident memory sampling for timed sections.
package memory

import (
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// BytesPerMB converts byte counts to the megabytes shown in reports.
const BytesPerMB = 1024 * 1024

// Sampler reports the current resident set size of the process in bytes.
// ok is false when the platform could not provide a value.
type Sampler interface {
	Sample() (bytes int64, ok bool)
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() (int64, bool)

// Sample calls f.
func (f SamplerFunc) Sample() (int64, bool) {
	return f()
}

// Unavailable is a Sampler that never succeeds.
var Unavailable Sampler = SamplerFunc(func() (int64, bool) { return 0, false })

// ProcessSampler samples the RSS of the running process. It tries the platform
// fast path first and falls back to gopsutil.
type ProcessSampler struct {
	fast *fastPath

	once sync.Once
	proc *process.Process
}

// New creates a sampler for the current process.
func New() *ProcessSampler {
	return &ProcessSampler{
		fast: openFastPath(),
	}
}

// Sample returns the current resident set size in bytes.
func (s *ProcessSampler) Sample() (int64, bool) {
	if s.fast != nil {
		if rss, ok := s.fast.residentBytes(); ok {
			return rss, true
		}
	}
	return s.portable()
}

// Close releases any handle held by the fast path. Later samples use gopsutil.
// Close must not race Sample.
func (s *ProcessSampler) Close() error {
	if s.fast == nil {
		return nil
	}
	err := s.fast.close()
	s.fast = nil
	return err
}

func (s *ProcessSampler) portable() (int64, bool) {
	s.once.Do(func() {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err == nil {
			s.proc = p
		}
	})
	if s.proc == nil {
		return 0, false
	}
	info, err := s.proc.MemoryInfo()
	if err != nil || info == nil {
		return 0, false
	}
	return int64(info.RSS), true
}

// ToMB converts bytes to megabytes.
func ToMB(b int64) float64 {
	return float64(b) / BytesPerMB
}
