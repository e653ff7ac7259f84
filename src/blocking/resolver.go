package blocking

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/newrelic/infra-integrations-sdk/v3/log"
)

// PathSeparator joins the session ids of a node's lineage
const PathSeparator = "/"

// minPathWidth is the minimum zero padded width of a session id in a path label
const minPathWidth = 5

// OrphanReason explains why a retained session is not part of any chain
type OrphanReason string

// Orphan reasons
const (
	// ReasonBlockerNotFound means the chain leads to a blocker outside the filtered set
	ReasonBlockerNotFound OrphanReason = "blocker_not_found"
	// ReasonCycle means the chain loops back on itself without reaching a head
	ReasonCycle OrphanReason = "cycle"
	// ReasonDepthLimit means the session lies deeper than the configured maximum depth
	ReasonDepthLimit OrphanReason = "depth_limit"
)

// Node is a session placed in the blocking forest, or an orphan
type Node struct {
	Session
	Level        int          `json:"level"`
	Path         string       `json:"path,omitempty"`
	Head         bool         `json:"head"`
	OrphanReason OrphanReason `json:"orphan_reason,omitempty"`
	SQL          string       `json:"sql_text,omitempty"`
	Children     []*Node      `json:"-"`
}

// Orphan reports whether the node is outside every chain
func (n *Node) Orphan() bool {
	return n.OrphanReason != ""
}

// Result is the resolved forest with its statistics
type Result struct {
	// Heads are the roots of the forest in ascending session id order
	Heads []*Node
	// Nodes holds every placed node ordered by path label
	Nodes []*Node
	// Orphans holds retained sessions outside every chain in ascending session id order
	Orphans   []*Node
	Summary   Summary
	WaitTypes []WaitTypeStat
	Databases []DatabaseStat
	Options   Options
}

// Resolve builds the blocking forest of a snapshot. It never fails: degenerate
// input such as cycles or missing blockers ends up in Orphans.
func Resolve(sessions []Session, opts Options) Result {
	opts = opts.withDefaults()
	log.Debug("Resolving blocking chains over %d sessions", len(sessions))

	retained := filterSessions(sessions, opts)
	width := pathWidth(sessions)

	nodes := make(map[int64]*Node, len(retained))
	children := make(map[int64][]*Node, len(retained))
	for _, s := range retained {
		n := &Node{Session: s, SQL: sqlDisplay(s.SQLText, opts)}
		nodes[s.SessionID] = n
	}
	ids := sortedIDs(nodes)
	for _, id := range ids {
		n := nodes[id]
		if n.Blocked() {
			children[n.BlockedBy] = append(children[n.BlockedBy], n)
		}
	}

	result := Result{Options: opts}
	placed := make(map[int64]bool, len(nodes))

	for _, id := range ids {
		n := nodes[id]
		if n.Blocked() || len(children[id]) == 0 {
			continue
		}
		n.Head = true
		n.Path = padID(id, width)
		placed[id] = true
		result.Heads = append(result.Heads, n)
	}

	// breadth first, parents in ascending id order; a node is placed at most once
	frontier := result.Heads
	for level := 1; len(frontier) > 0 && level <= opts.MaxDepth; level++ {
		var next []*Node
		for _, parent := range frontier {
			for _, child := range children[parent.SessionID] {
				if placed[child.SessionID] {
					continue
				}
				placed[child.SessionID] = true
				child.Level = level
				child.Path = parent.Path + PathSeparator + padID(child.SessionID, width)
				parent.Children = append(parent.Children, child)
				next = append(next, child)
			}
		}
		sortNodesByID(next)
		frontier = next
	}

	for _, id := range ids {
		n := nodes[id]
		if placed[id] {
			result.Nodes = append(result.Nodes, n)
			continue
		}
		n.OrphanReason = orphanReason(n, nodes, placed)
		result.Orphans = append(result.Orphans, n)
	}
	sort.SliceStable(result.Nodes, func(i, j int) bool {
		return result.Nodes[i].Path < result.Nodes[j].Path
	})

	result.Summary = summarize(result, *opts.Classifier)
	result.WaitTypes = waitTypeBreakdown(retained)
	result.Databases = databaseBreakdown(retained)

	log.Debug("Resolved %d chains, %d placed sessions, %d orphans, max depth %d",
		len(result.Heads), len(result.Nodes), len(result.Orphans), result.Summary.MaxBlockingDepth)
	return result
}

// filterSessions keeps blocked user sessions that pass the duration and activity filters,
// plus every session blocking a kept session whatever its own duration or status.
// The result keeps snapshot order.
func filterSessions(sessions []Session, opts Options) []Session {
	candidates := make(map[int64]Session, len(sessions))
	for _, s := range sessions {
		if s.SessionID <= opts.SystemSessionFloor {
			continue
		}
		if _, dup := candidates[s.SessionID]; dup {
			log.Debug("Ignoring duplicate snapshot row for session %d", s.SessionID)
			continue
		}
		candidates[s.SessionID] = s
	}

	kept := make(map[int64]bool, len(candidates))
	for id, s := range candidates {
		if s.Blocked() && s.BlockingDuration >= opts.MinBlockingDuration && (!opts.ActiveOnly || !s.idle()) {
			kept[id] = true
		}
	}

	// blockers of kept sessions are kept too, until nothing changes
	for changed := true; changed; {
		changed = false
		for id, s := range candidates {
			if !kept[id] || !s.Blocked() || kept[s.BlockedBy] {
				continue
			}
			if _, ok := candidates[s.BlockedBy]; ok {
				kept[s.BlockedBy] = true
				changed = true
			}
		}
	}

	out := make([]Session, 0, len(kept))
	seen := make(map[int64]bool, len(kept))
	for _, s := range sessions {
		if kept[s.SessionID] && !seen[s.SessionID] {
			seen[s.SessionID] = true
			out = append(out, candidates[s.SessionID])
		}
	}
	return out
}

// orphanReason walks up the blocked_by chain of an unplaced node
func orphanReason(n *Node, nodes map[int64]*Node, placed map[int64]bool) OrphanReason {
	visited := map[int64]bool{n.SessionID: true}
	current := n
	for {
		parent, ok := nodes[current.BlockedBy]
		if !ok || !current.Blocked() {
			return ReasonBlockerNotFound
		}
		if placed[parent.SessionID] {
			return ReasonDepthLimit
		}
		if visited[parent.SessionID] {
			return ReasonCycle
		}
		visited[parent.SessionID] = true
		current = parent
	}
}

// pathWidth is the zero padded width that fits every session id of the snapshot
func pathWidth(sessions []Session) int {
	width := minPathWidth
	for _, s := range sessions {
		if w := len(strconv.FormatInt(s.SessionID, 10)); w > width {
			width = w
		}
	}
	return width
}

func padID(id int64, width int) string {
	return fmt.Sprintf("%0*d", width, id)
}

func sortedIDs(nodes map[int64]*Node) []int64 {
	ids := make([]int64, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortNodesByID(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].SessionID < nodes[j].SessionID })
}
