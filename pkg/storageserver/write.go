package storageserver

import (
	"os"
	"time"
)

// Replicator is implemented by the replication worker; Store callers give
// WRITE/UNDO/REVERT/DELETE a hook to enqueue the resulting propagation job
// without this package depending on the replication package directly.
type Replicator interface {
	EnqueueUpdate(filename string)
	EnqueueDelete(filename string)
}

// WriteTransaction tracks one in-flight WRITE from WRITE_START through
// commit or abort (spec.md §4.3). It is not safe for concurrent use by
// more than one goroutine; a connection handler owns exactly one at a
// time.
type WriteTransaction struct {
	store       *Store
	repl        Replicator
	filename    string
	sentenceNum int
	fl          *FileLock
	leadingWS   string
	words       []string
	locked      bool
	done        bool
}

// StartWrite performs steps 1-4 of the WRITE transaction: it trylocks the
// target sentence, snapshots files/F into a swapfile, refreshes the undo
// slot from that snapshot, and validates sentenceNum against the
// snapshot's sentence count.
func StartWrite(store *Store, repl Replicator, filename string, sentenceNum int) (*WriteTransaction, error) {
	if sentenceNum < 0 {
		return nil, ErrInvalidSentenceIndex
	}

	fl := store.locks.Get(filename)
	if !fl.TryLockSentence(sentenceNum) {
		return nil, ErrWriteLocked
	}

	tx := &WriteTransaction{store: store, repl: repl, filename: filename, sentenceNum: sentenceNum, fl: fl, locked: true}

	content, err := os.ReadFile(store.filePath(filename))
	if err != nil {
		tx.unlock()
		return nil, err
	}
	swapPath := store.swapPath(filename, sentenceNum)
	if err := os.WriteFile(swapPath, content, 0o644); err != nil {
		tx.unlock()
		return nil, err
	}
	if err := copyFile(swapPath, store.undoPath(filename)); err != nil {
		tx.unlock()
		_ = os.Remove(swapPath)
		return nil, err
	}

	sentences := SplitSentences(string(content))
	numSentences := len(sentences)
	valid := sentenceNum < numSentences || (sentenceNum == numSentences && LastEndsWithDelimiter(sentences))
	if !valid {
		tx.unlock()
		_ = os.Remove(swapPath)
		return nil, ErrInvalidSentenceIndex
	}

	if sentenceNum < numSentences {
		tx.leadingWS, _ = SplitLeadingWhitespace(sentences[sentenceNum])
		body := sentences[sentenceNum][len(tx.leadingWS):]
		tx.words = SplitWords(body)
	}
	return tx, nil
}

func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, content, 0o644)
}

func (tx *WriteTransaction) unlock() {
	if tx.locked {
		tx.fl.UnlockSentence(tx.sentenceNum)
		tx.locked = false
	}
}

// ApplyWordData validates wordIndex against the working sentence's current
// word count and splices in the words parsed from content (content is
// re-split so embedded delimiters become their own words, spec.md §12).
// An out-of-range index only fails this WRITE_DATA; the transaction stays
// open.
func (tx *WriteTransaction) ApplyWordData(wordIndex int, content string) error {
	if wordIndex < 0 || wordIndex > len(tx.words) {
		return ErrWordIndexOutOfRange
	}
	newWords := SplitWords(content)
	spliced, err := SpliceWords(tx.words, wordIndex, newWords)
	if err != nil {
		return err
	}
	tx.words = spliced
	return nil
}

// Abort ends the transaction without committing: the sentence lock is
// released and the swapfile is discarded. Used when the client
// disconnects before sending WRITE_ETIRW (spec.md §4.3 step 6).
func (tx *WriteTransaction) Abort() {
	if tx.done {
		return
	}
	tx.done = true
	_ = os.Remove(tx.store.swapPath(tx.filename, tx.sentenceNum))
	tx.unlock()
}

// Commit performs step 7: it rejoins the working sentence, takes the
// file's coarse write lock, re-reads the CURRENT on-disk content (which
// may have changed under a different sentence's concurrent WRITE),
// splices the working sentence back in by index, writes the merged
// content, discards the swapfile, recomputes metadata, and enqueues
// replication. Commit always releases the sentence lock, whether or not
// it succeeds.
func (tx *WriteTransaction) Commit() error {
	if tx.done {
		return nil
	}
	defer func() {
		tx.done = true
		tx.unlock()
	}()

	newSentence := tx.leadingWS + JoinWords(tx.words)

	tx.fl.Coarse.Lock()
	defer tx.fl.Coarse.Unlock()

	current, err := os.ReadFile(tx.store.filePath(tx.filename))
	if err != nil {
		return err
	}
	sentences := SplitSentences(string(current))
	cur := len(sentences)

	switch {
	case tx.sentenceNum < cur:
		sentences[tx.sentenceNum] = newSentence
	case tx.sentenceNum == cur:
		sentences = append(sentences, newSentence)
	default:
		return ErrInvalidSentenceIndex
	}

	merged := JoinSentences(sentences)
	if err := os.WriteFile(tx.store.filePath(tx.filename), []byte(merged), 0o644); err != nil {
		return err
	}
	_ = os.Remove(tx.store.swapPath(tx.filename, tx.sentenceNum))

	now := time.Now().Unix()
	var words uint64
	for _, s := range sentences {
		words += uint64(len(SplitWords(s)))
	}
	tx.store.meta.Update(tx.filename, func(m *Metadata) {
		m.Size = uint64(len(merged))
		m.Words = words
		m.Chars = uint64(len([]rune(merged)))
		m.ModifiedUnix = now
	})
	if err := tx.store.SaveMetadata(); err != nil {
		return err
	}

	if tx.repl != nil {
		tx.repl.EnqueueUpdate(tx.filename)
	}
	return nil
}
