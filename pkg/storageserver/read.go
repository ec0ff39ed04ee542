package storageserver

import "os"

// ReadFile returns the full current content of filename and bumps its
// access time. The coarse read lock is held only for the duration of the
// filesystem read; chunking the result onto the wire is the connection
// handler's job (spec.md §6: READ streams content in chunked framing).
func (s *Store) ReadFile(filename string) ([]byte, error) {
	if !s.Exists(filename) {
		return nil, ErrFileNotFound
	}
	fl := s.locks.Get(filename)
	fl.Coarse.RLock()
	defer fl.Coarse.RUnlock()

	content, err := os.ReadFile(s.filePath(filename))
	if err != nil {
		return nil, err
	}
	s.touchAccess(filename)
	return content, nil
}

// StreamWords returns filename's content split into the word sequence the
// STREAM command emits one at a time with pacing applied by the caller
// (spec.md §6).
func (s *Store) StreamWords(filename string) ([]string, error) {
	if !s.Exists(filename) {
		return nil, ErrFileNotFound
	}
	fl := s.locks.Get(filename)
	fl.Coarse.RLock()
	defer fl.Coarse.RUnlock()

	content, err := os.ReadFile(s.filePath(filename))
	if err != nil {
		return nil, err
	}
	s.touchAccess(filename)

	var words []string
	for _, sent := range SplitSentences(string(content)) {
		words = append(words, SplitWords(sent)...)
	}
	return words, nil
}
