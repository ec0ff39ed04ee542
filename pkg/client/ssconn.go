package client

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/dnfs-project/dnfs/internal/wire"
)

// dialSS opens a fresh connection to loc; every file-data operation gets its
// own short-lived connection (spec.md §2: the client dials the SS directly
// once the NS has resolved and authorized the request).
func (c *Client) dialSS(loc wire.SSLoc) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", loc.IP, loc.Port)
	return net.DialTimeout("tcp", addr, c.DialTimeout)
}

func (c *Client) ssRequest(conn net.Conn, typ wire.Type, payload []byte) (wire.Type, []byte, error) {
	if c.RequestTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.RequestTimeout))
	}
	if err := wire.WriteMessage(conn, typ, payload); err != nil {
		return 0, nil, err
	}
	return wire.ReadMessage(conn)
}

// readChunks drains a CONTENT_CHUNK stream started by the first response
// already read into first/firstPayload.
func readChunks(conn net.Conn, firstTyp wire.Type, firstPayload []byte) ([]byte, error) {
	var buf bytes.Buffer
	typ, payload := firstTyp, firstPayload
	for {
		if typ != wire.TypeContentChunk {
			return nil, fmt.Errorf("unexpected message type %d in content stream", typ)
		}
		chunk, err := wire.DecodeContentChunk(payload)
		if err != nil {
			return nil, err
		}
		buf.Write(chunk.Data)
		if chunk.IsFinal {
			return buf.Bytes(), nil
		}
		var err2 error
		typ, payload, err2 = wire.ReadMessage(conn)
		if err2 != nil {
			return nil, err2
		}
	}
}

// Read resolves filename and returns its full content (READ).
func (c *Client) Read(filename string) ([]byte, error) {
	loc, err := c.resolve(wire.ResolveRead, filename, "")
	if err != nil {
		return nil, err
	}
	conn, err := c.dialSS(loc)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	req := &wire.ReadReq{Filename: filename}
	typ, payload, err := c.ssRequest(conn, wire.TypeReadReq, req.Marshal())
	if err != nil {
		return nil, err
	}
	if typ == wire.TypeFileNotFound {
		return nil, fmt.Errorf("file not found")
	}
	if typ != wire.TypeContentChunk {
		return nil, errFromGenericFail(payload)
	}
	return readChunks(conn, typ, payload)
}

// Stream resolves filename and returns it word-by-word, delivering each word
// to onWord as it arrives (STREAM, spec.md §4.3's 100ms inter-word pacing).
func (c *Client) Stream(filename string, onWord func(word string)) error {
	loc, err := c.resolve(wire.ResolveStream, filename, "")
	if err != nil {
		return err
	}
	conn, err := c.dialSS(loc)
	if err != nil {
		return err
	}
	defer conn.Close()
	if c.RequestTimeout > 0 {
		_ = conn.SetDeadline(time.Time{}) // streaming may outlast one request's deadline
	}
	req := &wire.StreamReq{Filename: filename}
	if err := wire.WriteMessage(conn, wire.TypeStreamReq, req.Marshal()); err != nil {
		return err
	}
	for {
		typ, payload, err := wire.ReadMessage(conn)
		if err != nil {
			return err
		}
		switch typ {
		case wire.TypeStreamWord:
			w, err := wire.DecodeStreamWord(payload)
			if err != nil {
				return err
			}
			onWord(w.Word)
		case wire.TypeStreamEnd:
			return nil
		case wire.TypeFileNotFound:
			return fmt.Errorf("file not found")
		default:
			return errFromGenericFail(payload)
		}
	}
}

// Undo restores filename from its single-slot undo buffer (UNDO).
func (c *Client) Undo(filename string) (string, error) {
	loc, err := c.resolve(wire.ResolveUndo, filename, "")
	if err != nil {
		return "", err
	}
	conn, err := c.dialSS(loc)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	req := &wire.UndoReq{Filename: filename}
	typ, payload, err := c.ssRequest(conn, wire.TypeUndoReq, req.Marshal())
	if err != nil {
		return "", err
	}
	return genericResult(typ, payload)
}

// Checkpoint tags filename's current content (CHECKPOINT).
func (c *Client) Checkpoint(filename, tag string) (string, error) {
	return c.checkpointTagReq(wire.ResolveCheckpoint, wire.TypeCheckpointCreate, filename, tag)
}

// Revert restores filename to a previously tagged checkpoint (REVERT).
func (c *Client) Revert(filename, tag string) (string, error) {
	return c.checkpointTagReq(wire.ResolveCheckpoint, wire.TypeRevert, filename, tag)
}

func (c *Client) checkpointTagReq(op wire.ResolveOp, typ wire.Type, filename, tag string) (string, error) {
	loc, err := c.resolve(op, filename, tag)
	if err != nil {
		return "", err
	}
	conn, err := c.dialSS(loc)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	req := &wire.CheckpointTag{Filename: filename, Tag: tag}
	rtyp, payload, err := c.ssRequest(conn, typ, req.Marshal())
	if err != nil {
		return "", err
	}
	return genericResult(rtyp, payload)
}

// ViewCheckpoint returns a tagged checkpoint's content without reverting to
// it (VIEWCHECKPOINT).
func (c *Client) ViewCheckpoint(filename, tag string) ([]byte, error) {
	loc, err := c.resolve(wire.ResolveCheckpoint, filename, tag)
	if err != nil {
		return nil, err
	}
	conn, err := c.dialSS(loc)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	req := &wire.CheckpointTag{Filename: filename, Tag: tag}
	typ, payload, err := c.ssRequest(conn, wire.TypeViewCheckpoint, req.Marshal())
	if err != nil {
		return nil, err
	}
	if typ != wire.TypeContentChunk {
		return nil, errFromGenericFail(payload)
	}
	return readChunks(conn, typ, payload)
}

// ListCheckpoints lists every tag recorded for filename (LISTCHECKPOINTS,
// unsorted per SPEC_FULL.md §12).
func (c *Client) ListCheckpoints(filename string) ([]wire.CheckpointEntry, error) {
	loc, err := c.resolve(wire.ResolveCheckpoint, filename, "")
	if err != nil {
		return nil, err
	}
	conn, err := c.dialSS(loc)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	req := &wire.FilenameOnly{Filename: filename}
	typ, payload, err := c.ssRequest(conn, wire.TypeListCheckpoints, req.Marshal())
	if err != nil {
		return nil, err
	}
	if typ != wire.TypeListCheckpointsRes {
		return nil, errFromGenericFail(payload)
	}
	res, err := wire.DecodeListCheckpointsRes(payload)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

func genericResult(typ wire.Type, payload []byte) (string, error) {
	switch typ {
	case wire.TypeGenericOK:
		ok, _ := wire.DecodeGenericOK(payload)
		if ok != nil {
			return ok.Message, nil
		}
		return "", nil
	case wire.TypeFileNotFound:
		return "", fmt.Errorf("file not found")
	default:
		return "", errFromGenericFail(payload)
	}
}

// WriteTransaction represents one open WRITE session against a sentence:
// it stays open across multiple WriteWord calls until Commit or Abort
// (spec.md §4.3's word-splice edit loop and the "w>" sub-prompt).
type WriteTransaction struct {
	conn     net.Conn
	done     bool
	deadline time.Duration
}

// BeginWrite resolves filename and opens sentenceNum for editing. Returns
// ErrWriteLocked-shaped error text from the SS if another writer already
// holds the sentence's fine-grained lock (spec.md §4.3: trylock semantics,
// never blocks).
func (c *Client) BeginWrite(filename string, sentenceNum uint32) (*WriteTransaction, error) {
	loc, err := c.resolve(wire.ResolveWrite, filename, "")
	if err != nil {
		return nil, err
	}
	conn, err := c.dialSS(loc)
	if err != nil {
		return nil, err
	}
	req := &wire.WriteStart{Filename: filename, SentenceNum: sentenceNum}
	if err := wire.WriteMessage(conn, wire.TypeWriteStart, req.Marshal()); err != nil {
		conn.Close()
		return nil, err
	}
	typ, payload, err := wire.ReadMessage(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	switch typ {
	case wire.TypeWriteOK:
		return &WriteTransaction{conn: conn, deadline: c.RequestTimeout}, nil
	case wire.TypeWriteLocked:
		conn.Close()
		locked, _ := wire.DecodeWriteLocked(payload)
		msg := "sentence is locked"
		if locked != nil {
			msg = locked.Message
		}
		return nil, fmt.Errorf("%s", msg)
	case wire.TypeFileNotFound:
		conn.Close()
		return nil, fmt.Errorf("file not found")
	default:
		conn.Close()
		return nil, errFromGenericFail(payload)
	}
}

// WriteWord sends one word-splice edit at wordIndex within the open
// sentence. The SS accepts content with embedded sentence-ending
// punctuation and re-splits it into multiple words (SPEC_FULL.md §12).
func (t *WriteTransaction) WriteWord(wordIndex uint32, content string) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	req := &wire.WriteData{WordIndex: wordIndex, Content: content}
	if err := wire.WriteMessage(t.conn, wire.TypeWriteData, req.Marshal()); err != nil {
		return err
	}
	return nil
}

// Commit sends WRITE_ETIRW, asking the SS to validate and commit the
// transaction (spec.md §4.3 step 4), then closes the connection.
func (t *WriteTransaction) Commit() (string, error) {
	if t.done {
		return "", fmt.Errorf("transaction already closed")
	}
	t.done = true
	defer t.conn.Close()
	end := &wire.WriteETIRW{}
	if t.deadline > 0 {
		_ = t.conn.SetDeadline(time.Now().Add(t.deadline))
	}
	if err := wire.WriteMessage(t.conn, wire.TypeWriteETIRW, end.Marshal()); err != nil {
		return "", err
	}
	typ, payload, err := wire.ReadMessage(t.conn)
	if err != nil {
		return "", err
	}
	return genericResult(typ, payload)
}

// Abort drops the connection without committing, causing the SS to discard
// the in-progress edits and release the sentence lock.
func (t *WriteTransaction) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.conn.Close()
}
