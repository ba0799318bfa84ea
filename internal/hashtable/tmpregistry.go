package hashtable

import (
	"os"
	"sync"
)

// pending holds the temp files of saves that have not finished yet, so an
// interrupted process can remove them on its way out.
var pending tmpSet

type tmpSet struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func (s *tmpSet) add(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paths == nil {
		s.paths = make(map[string]struct{})
	}
	s.paths[path] = struct{}{}
}

func (s *tmpSet) drop(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
}

func (s *tmpSet) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	s.paths = nil
	return out
}

// CleanupTmpFiles removes the temp files of every save still in flight.
// The rename target is never touched.
func CleanupTmpFiles() {
	for _, p := range pending.drain() {
		_ = os.Remove(p)
	}
}
