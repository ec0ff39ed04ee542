package wire

// ReadReq / StreamReq ask an SS to serve a file's full content (READ) or
// stream it word-by-word (STREAM). Both carry only a filename: the SS
// resolves it against its own metadata table after the NS has already
// authorized the client and handed it this SS's address.
type ReadReq struct{ Filename string }

func (m *ReadReq) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	return e.bytes()
}

func DecodeReadReq(b []byte) (*ReadReq, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	return &ReadReq{Filename: f}, nil
}

type StreamReq struct{ Filename string }

func (m *StreamReq) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	return e.bytes()
}

func DecodeStreamReq(b []byte) (*StreamReq, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	return &StreamReq{Filename: f}, nil
}

// WriteStart opens a WRITE transaction against a given sentence number.
type WriteStart struct {
	Filename    string
	SentenceNum uint32
}

func (m *WriteStart) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	e.putU32(m.SentenceNum)
	return e.bytes()
}

func DecodeWriteStart(b []byte) (*WriteStart, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	return &WriteStart{Filename: f, SentenceNum: n}, nil
}

// WriteLocked is returned in place of WriteOK when the sentence's fine-grain
// lock is already held by another writer (spec.md §4.3: trylock, never block).
type WriteLocked struct{ Message string }

func (m *WriteLocked) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Message, MaxMessageLen)
	return e.bytes()
}

func DecodeWriteLocked(b []byte) (*WriteLocked, error) {
	d := newDecoder(b)
	msg, err := d.getString(MaxMessageLen)
	if err != nil {
		return nil, err
	}
	return &WriteLocked{Message: msg}, nil
}

// WriteData carries one word-splice edit within an open WRITE transaction.
// WordIndex addresses a position within the sentence's word list (spec.md
// §4.3); Content may itself contain embedded '.', '!', '?' delimiters, which
// the SS re-splits into multiple words per §12.
type WriteData struct {
	WordIndex uint32
	Content   string
}

func (m *WriteData) Marshal() []byte {
	e := newEncoder()
	e.putU32(m.WordIndex)
	e.putString(m.Content, MaxWordLen)
	return e.bytes()
}

func DecodeWriteData(b []byte) (*WriteData, error) {
	d := newDecoder(b)
	idx, err := d.getU32()
	if err != nil {
		return nil, err
	}
	content, err := d.getString(MaxWordLen)
	if err != nil {
		return nil, err
	}
	return &WriteData{WordIndex: idx, Content: content}, nil
}

// WriteETIRW closes the word-splice phase and asks the SS to validate and
// commit the transaction (spec.md §4.3 step 4: "ETIRW" is "WRITE" reversed).
type WriteETIRW struct{}

func (m *WriteETIRW) Marshal() []byte { return nil }

func DecodeWriteETIRW(b []byte) (*WriteETIRW, error) { return &WriteETIRW{}, nil }

// WriteOK acknowledges a started WRITE transaction: the sentence lock is
// held and the sentence index validated, so WRITE_DATA may follow. The
// commit itself is answered with GENERIC_OK.
type WriteOK struct{ Message string }

func (m *WriteOK) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Message, MaxMessageLen)
	return e.bytes()
}

func DecodeWriteOK(b []byte) (*WriteOK, error) {
	d := newDecoder(b)
	msg, err := d.getString(MaxMessageLen)
	if err != nil {
		return nil, err
	}
	return &WriteOK{Message: msg}, nil
}

// UndoReq asks the SS to restore a file from its single-slot undo buffer.
type UndoReq struct{ Filename string }

func (m *UndoReq) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	return e.bytes()
}

func DecodeUndoReq(b []byte) (*UndoReq, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	return &UndoReq{Filename: f}, nil
}

// CheckpointTag covers CHECKPOINT, REVERT, VIEWCHECKPOINT: all key a file by
// filename+tag.
type CheckpointTag struct {
	Filename string
	Tag      string
}

func (m *CheckpointTag) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Filename, MaxFilenameLen)
	e.putString(m.Tag, MaxTagLen)
	return e.bytes()
}

func DecodeCheckpointTag(b []byte) (*CheckpointTag, error) {
	d := newDecoder(b)
	f, err := d.getString(MaxFilenameLen)
	if err != nil {
		return nil, err
	}
	tag, err := d.getString(MaxTagLen)
	if err != nil {
		return nil, err
	}
	return &CheckpointTag{Filename: f, Tag: tag}, nil
}

type CheckpointEntry struct {
	Tag          string
	Size         uint64
	ModifiedUnix int64
}

type ListCheckpointsRes struct{ Entries []CheckpointEntry }

func (m *ListCheckpointsRes) Marshal() []byte {
	e := newEncoder()
	e.putU32(uint32(len(m.Entries)))
	for _, ent := range m.Entries {
		e.putString(ent.Tag, MaxTagLen)
		e.putU64(ent.Size)
		e.putI64(ent.ModifiedUnix)
	}
	return e.bytes()
}

func DecodeListCheckpointsRes(b []byte) (*ListCheckpointsRes, error) {
	d := newDecoder(b)
	n, err := d.getU32()
	if err != nil {
		return nil, err
	}
	out := make([]CheckpointEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		tag, err := d.getString(MaxTagLen)
		if err != nil {
			return nil, err
		}
		size, err := d.getU64()
		if err != nil {
			return nil, err
		}
		mod, err := d.getI64()
		if err != nil {
			return nil, err
		}
		out = append(out, CheckpointEntry{Tag: tag, Size: size, ModifiedUnix: mod})
	}
	return &ListCheckpointsRes{Entries: out}, nil
}

// ContentChunk streams a READ or VIEWCHECKPOINT body in bounded pieces
// (at most MaxChunkLen bytes each); IsFinal marks the last chunk so the reader
// doesn't need to wait for connection close to know it has everything.
type ContentChunk struct {
	Data    []byte
	IsFinal bool
}

func (m *ContentChunk) Marshal() []byte {
	e := newEncoder()
	e.putBytes(m.Data)
	e.putBool(m.IsFinal)
	return e.bytes()
}

func DecodeContentChunk(b []byte) (*ContentChunk, error) {
	d := newDecoder(b)
	data, err := d.getBytes()
	if err != nil {
		return nil, err
	}
	final, err := d.getBool()
	if err != nil {
		return nil, err
	}
	return &ContentChunk{Data: data, IsFinal: final}, nil
}

// StreamWord carries one word of a STREAM response; StreamEnd terminates it.
type StreamWord struct{ Word string }

func (m *StreamWord) Marshal() []byte {
	e := newEncoder()
	e.putString(m.Word, MaxWordLen)
	return e.bytes()
}

func DecodeStreamWord(b []byte) (*StreamWord, error) {
	d := newDecoder(b)
	w, err := d.getString(MaxWordLen)
	if err != nil {
		return nil, err
	}
	return &StreamWord{Word: w}, nil
}

type StreamEnd struct{}

func (m *StreamEnd) Marshal() []byte { return nil }

func DecodeStreamEnd(b []byte) (*StreamEnd, error) { return &StreamEnd{}, nil }

// FileNotFound is returned by an SS when its metadata table has no entry for
// the requested filename (a race with a DELETE or a stale NS resolution).
type FileNotFound struct{}

func (m *FileNotFound) Marshal() []byte { return nil }

func DecodeFileNotFound(b []byte) (*FileNotFound, error) { return &FileNotFound{}, nil }
