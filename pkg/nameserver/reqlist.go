package nameserver

import (
	"container/list"
	"sync"

	"github.com/dnfs-project/dnfs/pkg/nameserver/store"
)

// AccessRequest is one pending REQACCESS entry (spec.md §3).
type AccessRequest struct {
	Requester string
	Filename  string
}

// RequestList is the name server's unsorted collection of pending
// access requests (spec.md §3/§4.2: "unsorted singly linked list",
// reimplemented with container/list rather than hand-rolled pointers per
// spec.md §9's design notes). It is backed by store.Store for durability
// across restarts (SPEC_FULL §11); a nil store runs in-memory only.
type RequestList struct {
	mu    sync.Mutex
	ll    *list.List
	store *store.Store
}

// NewRequestList constructs an empty request list, optionally backed by a
// durable store.
func NewRequestList(db *store.Store) *RequestList {
	return &RequestList{ll: list.New(), store: db}
}

// LoadFromStore repopulates the in-memory list from the durable store.
func (r *RequestList) LoadFromStore() error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.LoadAccessRequests()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.ll.PushBack(AccessRequest{Requester: rec.Requester, Filename: rec.Filename})
	}
	return nil
}

// Add appends a new pending request, ignoring an exact duplicate.
func (r *RequestList) Add(req AccessRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for e := r.ll.Front(); e != nil; e = e.Next() {
		if e.Value.(AccessRequest) == req {
			return nil
		}
	}
	r.ll.PushBack(req)
	if r.store != nil {
		return r.store.InsertAccessRequest(req.Requester, req.Filename)
	}
	return nil
}

// RemoveMatching removes the first entry matching requester+filename,
// reporting whether one was found (ADDACCESS/GRANTACCESS's side effect,
// spec.md §4.2).
func (r *RequestList) RemoveMatching(requester, filename string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for e := r.ll.Front(); e != nil; e = e.Next() {
		if req := e.Value.(AccessRequest); req.Requester == requester && req.Filename == filename {
			r.ll.Remove(e)
			if r.store != nil {
				_ = r.store.DeleteAccessRequest(requester, filename)
			}
			return true
		}
	}
	return false
}

// ForOwnedFilenames returns every pending request whose filename is in
// ownedFilenames (VIEWREQS filters to requests the caller, as owner, can
// grant — spec.md §4.2).
func (r *RequestList) ForOwnedFilenames(ownedFilenames map[string]bool) []AccessRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AccessRequest
	for e := r.ll.Front(); e != nil; e = e.Next() {
		req := e.Value.(AccessRequest)
		if ownedFilenames[req.Filename] {
			out = append(out, req)
		}
	}
	return out
}
