package sqlstore

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
)

func nowMs() int64 { return time.Now().UnixMilli() }

func jsonMarshal(p record.Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func jsonUnmarshal(data string, p *record.Payload) error {
	return json.Unmarshal([]byte(data), p)
}

func sortEntries(entries []substrate.ListEntry, opts substrate.ListOptions) {
	sort.Slice(entries, func(i, j int) bool {
		var less bool
		switch opts.SortBy {
		case substrate.SortByTimestamp:
			less = entries[i].Ts < entries[j].Ts
		default:
			less = entries[i].URI < entries[j].URI
		}
		if opts.SortOrder == substrate.SortDesc {
			return !less
		}
		return less
	})
}
