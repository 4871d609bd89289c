package overlay

import "sort"

// unreached marks a host with no known finite cost yet, inside
// prevTable only. It is numerically identical to RemovalCost but
// represents a distinct concept: nothing here is ever a wire value.
const unreached Cost = -1

// prevEntry is one row of Dijkstra's predecessor table.
type prevEntry struct {
	prev Hostname
	has  bool
	cost Cost
}

// dijkstra computes shortest paths from self over the given
// link-state database. Ties (two unvisited hosts with equal minimum
// finite cost) are broken deterministically by picking the
// lexicographically smallest hostname, not by map iteration order.
func dijkstra(self Hostname, ls LinkState) map[Hostname]prevEntry {
	prevTable := make(map[Hostname]prevEntry)
	prevTable[self] = prevEntry{has: false, cost: 0}

	for h, cost := range ls[self] {
		prevTable[h] = prevEntry{prev: self, has: true, cost: cost}
	}
	for h := range ls {
		if _, ok := prevTable[h]; !ok {
			prevTable[h] = prevEntry{has: false, cost: unreached}
		}
		for neighbor := range ls[h] {
			if _, ok := prevTable[neighbor]; !ok {
				prevTable[neighbor] = prevEntry{has: false, cost: unreached}
			}
		}
	}

	visited := map[Hostname]bool{self: true}

	for {
		next, found := pickNext(prevTable, visited)
		if !found {
			break
		}
		visited[next] = true

		neighbors := make([]Hostname, 0, len(ls[next]))
		for h := range ls[next] {
			neighbors = append(neighbors, h)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		for _, neighbor := range neighbors {
			if visited[neighbor] {
				continue
			}
			candidate := prevTable[next].cost + ls[next][neighbor]
			cur := prevTable[neighbor]
			if cur.cost == unreached || candidate < cur.cost {
				prevTable[neighbor] = prevEntry{prev: next, has: true, cost: candidate}
			}
		}
	}

	return prevTable
}

// pickNext returns the unvisited host with minimum finite cost,
// breaking ties by lexicographically smallest hostname.
func pickNext(prevTable map[Hostname]prevEntry, visited map[Hostname]bool) (Hostname, bool) {
	var best Hostname
	bestCost := unreached
	found := false

	hosts := make([]Hostname, 0, len(prevTable))
	for h := range prevTable {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })

	for _, h := range hosts {
		if visited[h] {
			continue
		}
		entry := prevTable[h]
		if entry.cost == unreached {
			continue
		}
		if !found || entry.cost < bestCost {
			best = h
			bestCost = entry.cost
			found = true
		}
	}
	return best, found
}

// deriveRouting walks each destination's predecessor chain back to
// self to find the next hop, producing a fresh routing table.
// Destinations with no path (prev never set) are omitted.
func deriveRouting(self Hostname, prevTable map[Hostname]prevEntry) RoutingTable {
	table := RoutingTable{self: {NextHop: self, Cost: 0}}

	for dest, entry := range prevTable {
		if dest == self || !entry.has {
			continue
		}
		hop := dest
		cur := entry
		for cur.prev != self {
			hop = cur.prev
			next, ok := prevTable[cur.prev]
			if !ok || !next.has {
				hop = ""
				break
			}
			cur = next
		}
		if hop == "" {
			continue
		}
		table[dest] = RoutingEntry{NextHop: hop, Cost: entry.cost}
	}

	return table
}
