package blocking

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/newrelic/nri-mssql-lockwait/src/args"
)

const indent = "    "

// Tree renders one line per placed session in path order, children indented under their blocker.
// Orphans are not part of the tree.
func (r Result) Tree() string {
	var b strings.Builder
	for _, n := range r.Nodes {
		b.WriteString(strings.Repeat(indent, n.Level))
		if n.Head {
			fmt.Fprintf(&b, "HEAD %d", n.SessionID)
		} else {
			fmt.Fprintf(&b, "+-- %d blocked by %d", n.SessionID, n.BlockedBy)
		}
		b.WriteString(details(n))
		b.WriteByte('\n')
	}
	return b.String()
}

// Flat returns the placed sessions ordered by level, then longest blocking first,
// followed by the orphans
func (r Result) Flat() []*Node {
	out := make([]*Node, len(r.Nodes), len(r.Nodes)+len(r.Orphans))
	copy(out, r.Nodes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].BlockingDuration > out[j].BlockingDuration
	})
	return append(out, r.Orphans...)
}

// FlatText renders Flat as one line per session
func (r Result) FlatText() string {
	var b strings.Builder
	for _, n := range r.Flat() {
		if n.Orphan() {
			fmt.Fprintf(&b, "ORPHAN %d blocked by %d (%s)", n.SessionID, n.BlockedBy, n.OrphanReason)
		} else {
			fmt.Fprintf(&b, "L%d %d path=%s", n.Level, n.SessionID, n.Path)
		}
		b.WriteString(details(n))
		b.WriteByte('\n')
	}
	return b.String()
}

// GroupedNode is a placed session with the sessions it blocks nested under it
type GroupedNode struct {
	*Node
	BlockedSessions []GroupedNode `json:"blocked_sessions"`
}

// Grouped is the structured rendering of a Result
type Grouped struct {
	Summary   Summary        `json:"summary"`
	Chains    []GroupedNode  `json:"chains"`
	Orphans   []*Node        `json:"orphans"`
	WaitTypes []WaitTypeStat `json:"wait_types"`
	Databases []DatabaseStat `json:"databases"`
}

// Grouped nests every chain under its head
func (r Result) Grouped() Grouped {
	g := Grouped{
		Summary:   r.Summary,
		Chains:    make([]GroupedNode, 0, len(r.Heads)),
		Orphans:   make([]*Node, 0, len(r.Orphans)),
		WaitTypes: make([]WaitTypeStat, 0, len(r.WaitTypes)),
		Databases: make([]DatabaseStat, 0, len(r.Databases)),
	}
	for _, head := range r.Heads {
		g.Chains = append(g.Chains, group(head))
	}
	g.Orphans = append(g.Orphans, r.Orphans...)
	g.WaitTypes = append(g.WaitTypes, r.WaitTypes...)
	g.Databases = append(g.Databases, r.Databases...)
	return g
}

func group(n *Node) GroupedNode {
	g := GroupedNode{Node: n, BlockedSessions: make([]GroupedNode, 0, len(n.Children))}
	for _, child := range n.Children {
		g.BlockedSessions = append(g.BlockedSessions, group(child))
	}
	return g
}

// Render writes the result in format. Grouped output is indented JSON.
func Render(w io.Writer, r Result, format string) error {
	switch format {
	case args.FormatTree, "":
		_, err := io.WriteString(w, r.Tree())
		return err
	case args.FormatFlat:
		_, err := io.WriteString(w, r.FlatText())
		return err
	case args.FormatGrouped:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.Grouped())
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func details(n *Node) string {
	var parts []string
	add := func(key string, value *string) {
		if value != nil && *value != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", key, *value))
		}
	}

	add("status", n.Status)
	add("db", n.DatabaseName)
	add("login", n.LoginName)
	add("host", n.HostName)
	add("program", n.ProgramName)
	add("command", n.Command)
	add("wait", n.WaitType)
	if n.WaitTimeMs != nil {
		parts = append(parts, fmt.Sprintf("wait_ms=%d", *n.WaitTimeMs))
	}
	if n.WaitResource != nil && *n.WaitResource != "" {
		parts = append(parts, fmt.Sprintf("resource=%q", *n.WaitResource))
	}
	parts = append(parts, fmt.Sprintf("duration=%.0fs", n.BlockingDuration))
	if n.OpenTransactions > 0 {
		parts = append(parts, fmt.Sprintf("open_tran=%d", n.OpenTransactions))
	}
	if n.SQL != "" {
		parts = append(parts, fmt.Sprintf("sql=%q", n.SQL))
	}
	return " " + strings.Join(parts, " ")
}
