package nameserver

import (
	"strconv"
	"sync"
	"time"

	"github.com/dnfs-project/dnfs/pkg/nameserver/store"
)

// SSInfo is the name server's in-memory view of one storage server
// (spec.md §3's "Storage Server record"). RingOrder is the node's fixed
// position in registration order — the ring's neighbor relation is
// derived from this ordering rather than hand-woven circular pointers
// (spec.md §9 design note: "reimplement as an ordered collection keyed by
// ss id with neighbouring-entry iteration").
type SSInfo struct {
	SSID            uint32
	IP              string
	ClientPort      uint32
	ReplPort        uint32
	RingOrder       int64
	Online          bool
	Syncing         bool
	PendingFullSync bool
	FileCount       int
	BackupSSID      uint32
	HasBackup       bool
	LastHeartbeat   time.Time
}

func (s SSInfo) ClientAddr() string { return addrOf(s.IP, s.ClientPort) }
func (s SSInfo) ReplAddr() string   { return addrOf(s.IP, s.ReplPort) }

func addrOf(ip string, port uint32) string {
	return ip + ":" + strconv.FormatUint(uint64(port), 10)
}

// Ring is the name server's dynamic, circular list of storage servers
// (spec.md §4.2). It owns SS id allocation (stable across reconnects by
// ip+port), the ring-position-derived backup assignment, and the
// online/syncing flags placement and recovery consult.
type Ring struct {
	mu        sync.Mutex
	byID      map[uint32]*SSInfo
	order     []uint32 // ring order, ascending RingOrder
	nextID    uint32
	nextOrder int64
	db        *store.Store
}

// NewRing constructs an empty ring, optionally backed by a durable store.
func NewRing(db *store.Store) *Ring {
	return &Ring{byID: make(map[uint32]*SSInfo), db: db}
}

// LoadFromStore repopulates the ring from persisted records, reloading as
// offline (a restarted NS trusts nothing until heartbeats resume).
func (r *Ring) LoadFromStore() error {
	if r.db == nil {
		return nil
	}
	records, err := r.db.LoadSSRecords()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		info := &SSInfo{
			SSID: rec.SSID, IP: rec.IP, ClientPort: rec.ClientPort, ReplPort: rec.ReplPort,
			RingOrder: rec.RingOrder, FileCount: rec.FileCount,
			BackupSSID: rec.BackupSSID, HasBackup: rec.HasBackup,
		}
		r.byID[info.SSID] = info
		r.order = append(r.order, info.SSID)
		if rec.SSID >= r.nextID {
			r.nextID = rec.SSID + 1
		}
		if rec.RingOrder >= r.nextOrder {
			r.nextOrder = rec.RingOrder + 1
		}
	}
	return nil
}

// RegisterResult reports what the ring decided about an incoming REGISTER.
type RegisterResult struct {
	SSID        uint32
	MustRecover bool
	// NewlyPending lists ids whose backup assignment changed as a result of
	// this registration and so need UPDATE_BACKUP + RE_REPLICATE_ALL
	// (spec.md §4.2).
	NewlyPending []uint32
}

// Register finds or creates the SS identified by ip+clientPort (spec.md
// §4.3: "the id is the persistent key ... reused on reconnection from same
// ip+port"), marks it online, and recomputes the ring's backup
// assignments.
func (r *Ring) Register(ip string, clientPort, replPort uint32) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		info := r.byID[id]
		if info.IP == ip && info.ClientPort == clientPort {
			info.ReplPort = replPort
			info.Online = true
			info.Syncing = true
			info.LastHeartbeat = time.Now()
			r.persistLocked(info)
			pending := r.recomputeLocked()
			return RegisterResult{SSID: info.SSID, MustRecover: true, NewlyPending: pending}
		}
	}

	id := r.nextID
	r.nextID++
	info := &SSInfo{
		SSID: id, IP: ip, ClientPort: clientPort, ReplPort: replPort,
		RingOrder: r.nextOrder, Online: true, LastHeartbeat: time.Now(),
	}
	r.nextOrder++
	r.byID[id] = info
	r.order = append(r.order, id)
	r.persistLocked(info)
	pending := r.recomputeLocked()
	return RegisterResult{SSID: id, MustRecover: false, NewlyPending: pending}
}

// recomputeLocked assigns backup_ss_id = previous ring neighbor for every
// node, returning the ids whose assignment changed (spec.md §4.2: "if only
// one SS exists, backup is none"). Caller must hold r.mu.
func (r *Ring) recomputeLocked() []uint32 {
	var changed []uint32
	n := len(r.order)
	for i, id := range r.order {
		info := r.byID[id]
		if n <= 1 {
			if info.HasBackup {
				info.HasBackup = false
				info.BackupSSID = 0
				info.PendingFullSync = true
				changed = append(changed, id)
				r.persistLocked(info)
			}
			continue
		}
		prevID := r.order[(i-1+n)%n]
		if !info.HasBackup || info.BackupSSID != prevID {
			info.BackupSSID = prevID
			info.HasBackup = true
			info.PendingFullSync = true
			changed = append(changed, id)
			r.persistLocked(info)
		}
	}
	return changed
}

// ClearPendingFullSync clears the flag after the caller has dispatched
// UPDATE_BACKUP/RE_REPLICATE_ALL for id (spec.md §4.2: "then clears the
// flag").
func (r *Ring) ClearPendingFullSync(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.byID[id]; ok {
		info.PendingFullSync = false
		r.persistLocked(info)
	}
}

// ClearSyncing marks id no longer excluded from placement, called once its
// recovery completes.
func (r *Ring) ClearSyncing(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.byID[id]; ok {
		info.Syncing = false
		r.persistLocked(info)
	}
}

// MarkSyncing marks id excluded from placement while recovery is in
// progress (spec.md §4.4 step 3: "both SSs are marked is_syncing=true").
// Register already does this for the reconnecting node itself; callers use
// this to mark the backup holder driving the other side of the sync.
func (r *Ring) MarkSyncing(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.byID[id]; ok {
		info.Syncing = true
		r.persistLocked(info)
	}
}

// Heartbeat refreshes id's last-heartbeat timestamp.
func (r *Ring) Heartbeat(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byID[id]
	if !ok {
		return false
	}
	info.LastHeartbeat = time.Now()
	return true
}

// Get returns a copy of id's current record.
func (r *Ring) Get(id uint32) (SSInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.byID[id]
	if !ok {
		return SSInfo{}, false
	}
	return *info, true
}

// Online returns copies of every SS currently marked online, in ring
// order.
func (r *Ring) Online() []SSInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SSInfo, 0, len(r.order))
	for _, id := range r.order {
		if info := r.byID[id]; info.Online {
			out = append(out, *info)
		}
	}
	return out
}

// All returns copies of every SS the ring has ever seen, in ring order.
func (r *Ring) All() []SSInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SSInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// IncrementFileCount adjusts id's load-balancing file count by delta
// (spec.md §4.2 placement policy).
func (r *Ring) IncrementFileCount(id uint32, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.byID[id]; ok {
		info.FileCount += delta
		if info.FileCount < 0 {
			info.FileCount = 0
		}
		r.persistLocked(info)
	}
}

// MarkOffline marks every online SS whose last heartbeat is older than
// timeout as offline, returning the ids marked (spec.md §4.2's heartbeat
// monitor).
func (r *Ring) MarkOffline(timeout time.Duration) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var offlined []uint32
	now := time.Now()
	for _, id := range r.order {
		info := r.byID[id]
		if info.Online && now.Sub(info.LastHeartbeat) > timeout {
			info.Online = false
			offlined = append(offlined, id)
			r.persistLocked(info)
		}
	}
	return offlined
}

func (r *Ring) persistLocked(info *SSInfo) {
	if r.db == nil {
		return
	}
	_ = r.db.UpsertSSRecord(store.SSRecord{
		SSID: info.SSID, IP: info.IP, ClientPort: info.ClientPort, ReplPort: info.ReplPort,
		RingOrder: info.RingOrder, Online: info.Online, Syncing: info.Syncing,
		PendingFullSync: info.PendingFullSync, FileCount: info.FileCount,
		BackupSSID: info.BackupSSID, HasBackup: info.HasBackup, LastHeartbeat: info.LastHeartbeat,
	})
}
