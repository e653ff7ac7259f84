package blocking

import (
	"sort"
)

// Summary holds statistics over the blocked sessions of the filtered snapshot
type Summary struct {
	TotalBlockedSessions    int     `json:"total_blocked_sessions" metric_name:"blocking.totalBlockedSessions" source_type:"gauge"`
	BlockingHeads           int     `json:"blocking_heads" metric_name:"blocking.heads" source_type:"gauge"`
	MaxBlockingDepth        int     `json:"max_blocking_depth" metric_name:"blocking.maxDepth" source_type:"gauge"`
	OrphanSessions          int     `json:"orphan_sessions" metric_name:"blocking.orphanSessions" source_type:"gauge"`
	AvgBlockingDurationSecs float64 `json:"avg_blocking_duration_seconds" metric_name:"blocking.avgDurationInSeconds" source_type:"gauge"`
	MaxBlockingDurationSecs float64 `json:"max_blocking_duration_seconds" metric_name:"blocking.maxDurationInSeconds" source_type:"gauge"`
	LockWaits               int     `json:"lock_waits" metric_name:"blocking.lockWaits" source_type:"gauge"`
	IOWaits                 int     `json:"io_waits" metric_name:"blocking.ioWaits" source_type:"gauge"`
}

// WaitTypeStat aggregates the filtered sessions sharing a wait type
type WaitTypeStat struct {
	WaitType      string  `json:"wait_type" metric_name:"waitType" source_type:"attribute"`
	Sessions      int     `json:"sessions" metric_name:"blocking.sessions" source_type:"gauge"`
	AvgWaitTimeMs float64 `json:"avg_wait_time_ms" metric_name:"blocking.avgWaitTimeInMilliseconds" source_type:"gauge"`
	MaxWaitTimeMs int64   `json:"max_wait_time_ms" metric_name:"blocking.maxWaitTimeInMilliseconds" source_type:"gauge"`
}

// DatabaseStat aggregates the blocked sessions of one database
type DatabaseStat struct {
	DatabaseName            string  `json:"database_name" metric_name:"databaseName" source_type:"attribute"`
	BlockedSessions         int     `json:"blocked_sessions" metric_name:"blocking.blockedSessions" source_type:"gauge"`
	AvgBlockingDurationSecs float64 `json:"avg_blocking_duration_seconds" metric_name:"blocking.avgDurationInSeconds" source_type:"gauge"`
}

// GetDBName returns the database the statistics belong to
func (d DatabaseStat) GetDBName() string {
	return d.DatabaseName
}

// KnownDatabase reports whether the sessions named their database
func (d DatabaseStat) KnownDatabase() bool {
	return d.DatabaseName != unknownDatabase
}

func summarize(r Result, classifier WaitClassifier) Summary {
	s := Summary{
		BlockingHeads:  len(r.Heads),
		OrphanSessions: len(r.Orphans),
	}

	var total float64
	visit := func(n *Node) {
		if n.Level > s.MaxBlockingDepth {
			s.MaxBlockingDepth = n.Level
		}
		if !n.Blocked() {
			return
		}
		s.TotalBlockedSessions++
		total += n.BlockingDuration
		if n.BlockingDuration > s.MaxBlockingDurationSecs {
			s.MaxBlockingDurationSecs = n.BlockingDuration
		}
		if n.WaitType == nil {
			return
		}
		switch classifier.Category(*n.WaitType) {
		case CategoryLock:
			s.LockWaits++
		case CategoryIO:
			s.IOWaits++
		}
	}
	for _, n := range r.Nodes {
		visit(n)
	}
	for _, n := range r.Orphans {
		visit(n)
	}

	if s.TotalBlockedSessions > 0 {
		s.AvgBlockingDurationSecs = total / float64(s.TotalBlockedSessions)
	}
	return s
}

func waitTypeBreakdown(sessions []Session) []WaitTypeStat {
	index := map[string]int{}
	totals := map[string]int64{}
	var stats []WaitTypeStat

	for _, s := range sessions {
		if s.WaitType == nil || *s.WaitType == "" {
			continue
		}
		i, ok := index[*s.WaitType]
		if !ok {
			i = len(stats)
			index[*s.WaitType] = i
			stats = append(stats, WaitTypeStat{WaitType: *s.WaitType})
		}
		stats[i].Sessions++
		if s.WaitTimeMs != nil {
			totals[*s.WaitType] += *s.WaitTimeMs
			if *s.WaitTimeMs > stats[i].MaxWaitTimeMs {
				stats[i].MaxWaitTimeMs = *s.WaitTimeMs
			}
		}
	}

	for i := range stats {
		stats[i].AvgWaitTimeMs = float64(totals[stats[i].WaitType]) / float64(stats[i].Sessions)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Sessions != stats[j].Sessions {
			return stats[i].Sessions > stats[j].Sessions
		}
		return stats[i].WaitType < stats[j].WaitType
	})
	return stats
}

func databaseBreakdown(sessions []Session) []DatabaseStat {
	index := map[string]int{}
	totals := map[string]float64{}
	var stats []DatabaseStat

	for _, s := range sessions {
		if !s.Blocked() {
			continue
		}
		name := s.database()
		i, ok := index[name]
		if !ok {
			i = len(stats)
			index[name] = i
			stats = append(stats, DatabaseStat{DatabaseName: name})
		}
		stats[i].BlockedSessions++
		totals[name] += s.BlockingDuration
	}

	for i := range stats {
		stats[i].AvgBlockingDurationSecs = totals[stats[i].DatabaseName] / float64(stats[i].BlockedSessions)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].DatabaseName < stats[j].DatabaseName })
	return stats
}
