package nameserver

import "strings"

// NodeKind distinguishes the session folder tree's three node shapes
// (spec.md §"Session folder tree").
type NodeKind uint8

const (
	NodeRoot NodeKind = iota
	NodeFolder
	NodeFileStub
)

// rootName is the reserved name of the tree's root; no folder or file stub
// may use it (spec.md: "creating a reserved ROOT name" is an error).
const rootName = "ROOT"

// folderNode is one entry in a session's in-memory tree. children is kept
// in insertion order (spec.md: "ordered children"); parent is a
// non-owning back-pointer, never serialized.
type folderNode struct {
	name     string
	kind     NodeKind
	parent   *folderNode
	children []*folderNode
}

// FolderTree is a per-session, in-memory-only directory structure used by
// CREATEFOLDER/VIEWFOLDER/MOVE/UPMOVE/OPEN/OPENPARENT. It never touches
// persistent state: file stubs exist purely as placeholders so MOVE/UPMOVE
// have something to operate on once CREATE succeeds (spec.md §"Session
// folder tree").
type FolderTree struct {
	root *folderNode
	cwd  *folderNode
}

// NewFolderTree constructs a tree with just its ROOT node, cwd at root.
func NewFolderTree() *FolderTree {
	root := &folderNode{name: rootName, kind: NodeRoot}
	return &FolderTree{root: root, cwd: root}
}

func (t *FolderTree) findChild(parent *folderNode, name string) *folderNode {
	for _, c := range parent.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// CreateFolder adds a new folder under cwd.
func (t *FolderTree) CreateFolder(name string) error {
	if name == rootName {
		return ErrReservedFolderName
	}
	if t.findChild(t.cwd, name) != nil {
		return ErrFolderNameCollision
	}
	node := &folderNode{name: name, kind: NodeFolder, parent: t.cwd}
	t.cwd.children = append(t.cwd.children, node)
	return nil
}

// AddFileStub registers name as a placeholder file under cwd, called after
// a CREATE succeeds against the name server's persistent file map.
func (t *FolderTree) AddFileStub(name string) error {
	if name == rootName {
		return ErrReservedFolderName
	}
	if t.findChild(t.cwd, name) != nil {
		return ErrFolderNameCollision
	}
	node := &folderNode{name: name, kind: NodeFileStub, parent: t.cwd}
	t.cwd.children = append(t.cwd.children, node)
	return nil
}

// RemoveFileStub drops name's stub from wherever it currently lives in the
// tree, called after DELETE succeeds. Absence is not an error: a file
// created before the tree existed, or never opened into view, has no stub.
func (t *FolderTree) RemoveFileStub(name string) {
	var walk func(n *folderNode) bool
	walk = func(n *folderNode) bool {
		for i, c := range n.children {
			if c.kind == NodeFileStub && c.name == name {
				n.children = append(n.children[:i], n.children[i+1:]...)
				return true
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(t.root)
}

// FolderEntryView mirrors the wire layer's FolderEntry without importing it
// here, kept decoupled from the protocol package.
type FolderEntryView struct {
	Name string
	Kind NodeKind
}

// View lists cwd's direct children, or the children of the node reached by
// following path (slash-separated, relative to cwd) when path is non-empty.
func (t *FolderTree) View(path string) ([]FolderEntryView, error) {
	node := t.cwd
	if path != "" {
		var err error
		node, err = t.resolvePath(path)
		if err != nil {
			return nil, err
		}
	}
	out := make([]FolderEntryView, 0, len(node.children))
	for _, c := range node.children {
		out = append(out, FolderEntryView{Name: c.name, Kind: c.kind})
	}
	return out, nil
}

func (t *FolderTree) resolvePath(path string) (*folderNode, error) {
	node := t.cwd
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			if node.parent == nil {
				return nil, ErrUpmoveFromRoot
			}
			node = node.parent
			continue
		}
		child := t.findChild(node, part)
		if child == nil || child.kind == NodeFileStub {
			return nil, ErrFolderNotFound
		}
		node = child
	}
	return node, nil
}

// Open changes cwd to the named child folder. If createIf is set and the
// folder doesn't exist, it is created first (OPEN -c).
func (t *FolderTree) Open(name string, createIf bool) error {
	child := t.findChild(t.cwd, name)
	if child == nil {
		if !createIf {
			return ErrFolderNotFound
		}
		if err := t.CreateFolder(name); err != nil {
			return err
		}
		child = t.findChild(t.cwd, name)
	}
	if child.kind == NodeFileStub {
		return ErrFolderNotFound
	}
	t.cwd = child
	return nil
}

// OpenParent moves cwd up one level, failing if already at root (spec.md:
// "upmoving out of root" — the same rule applies to OPENPARENT since both
// walk the parent back-pointer).
func (t *FolderTree) OpenParent() error {
	if t.cwd.parent == nil {
		return ErrUpmoveFromRoot
	}
	t.cwd = t.cwd.parent
	return nil
}

// Move relocates the file stub named name into the folder named dir
// (direct child of cwd).
func (t *FolderTree) Move(name, dir string) error {
	stub := t.findChild(t.cwd, name)
	if stub == nil || stub.kind != NodeFileStub {
		return ErrFileNotFound
	}
	target := t.findChild(t.cwd, dir)
	if target == nil || target.kind != NodeFolder {
		return ErrFolderNotFound
	}
	t.removeChild(t.cwd, stub)
	stub.parent = target
	target.children = append(target.children, stub)
	return nil
}

// UpMove relocates the file stub named name from cwd up into cwd's parent.
func (t *FolderTree) UpMove(name string) error {
	if t.cwd.parent == nil {
		return ErrUpmoveFromRoot
	}
	stub := t.findChild(t.cwd, name)
	if stub == nil || stub.kind != NodeFileStub {
		return ErrFileNotFound
	}
	t.removeChild(t.cwd, stub)
	stub.parent = t.cwd.parent
	t.cwd.parent.children = append(t.cwd.parent.children, stub)
	return nil
}

func (t *FolderTree) removeChild(parent, child *folderNode) {
	for i, c := range parent.children {
		if c == child {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return
		}
	}
}
