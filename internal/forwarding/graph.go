package forwarding

import (
	"container/heap"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okdaichi/overlayd/internal/overlay"
)

// errNodeNotFound is returned when the requested node does not exist in the graph.
var errNodeNotFound = errors.New("node not found")

// errNoPath is returned when there is no path between two nodes.
var errNoPath = errors.New("no path between nodes")

// Graph is an operator-facing view of a link-state database, held as
// adjacency lists for O(1) node lookup. It exists purely for
// inspection and debugging: member nodes run their own shortest-path
// computation and never consult it.
type Graph struct {
	Nodes map[overlay.Hostname]*GraphNode
}

// GraphNode is one host and its outgoing edges.
type GraphNode struct {
	ID    overlay.Hostname `json:"id"`
	Edges []GraphEdge      `json:"edges"`
}

// GraphEdge is a directed connection to another host.
type GraphEdge struct {
	To   overlay.Hostname `json:"to"`
	Cost overlay.Cost     `json:"cost"`
}

// GraphFromLinkState builds a Graph from an aggregated link-state
// snapshot.
func GraphFromLinkState(ls overlay.LinkState) *Graph {
	g := &Graph{Nodes: make(map[overlay.Hostname]*GraphNode, len(ls))}
	for host, adj := range ls {
		node := &GraphNode{ID: host, Edges: make([]GraphEdge, 0, len(adj))}
		for peer, cost := range adj {
			node.Edges = append(node.Edges, GraphEdge{To: peer, Cost: cost})
		}
		g.Nodes[host] = node
	}
	return g
}

// ShortestPath computes the cheapest path from src to dst and its
// total cost. Unlike the routing core's full single-source run, this
// answers a single operator query, so it terminates as soon as dst is
// settled.
func (g *Graph) ShortestPath(src, dst overlay.Hostname) ([]overlay.Hostname, overlay.Cost, error) {
	if _, ok := g.Nodes[src]; !ok {
		return nil, 0, errNodeNotFound
	}
	if _, ok := g.Nodes[dst]; !ok {
		return nil, 0, errNodeNotFound
	}

	dist := make(map[overlay.Hostname]overlay.Cost, len(g.Nodes))
	prev := make(map[overlay.Hostname]overlay.Hostname, len(g.Nodes))
	settled := make(map[overlay.Hostname]bool, len(g.Nodes))
	dist[src] = 0

	pq := &pathQueue{}
	heap.Init(pq)
	heap.Push(pq, &pathItem{host: src, cost: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pathItem)
		u := item.host

		if u == dst {
			break
		}
		if settled[u] {
			continue // stale entry
		}
		settled[u] = true

		node, ok := g.Nodes[u]
		if !ok {
			continue // edge into a host with no adjacency of its own
		}
		for _, edge := range node.Edges {
			alt := dist[u] + edge.Cost
			if cur, ok := dist[edge.To]; !ok || alt < cur {
				dist[edge.To] = alt
				prev[edge.To] = u
				heap.Push(pq, &pathItem{host: edge.To, cost: alt})
			}
		}
	}

	if _, ok := dist[dst]; !ok {
		return nil, 0, errNoPath
	}

	path := []overlay.Hostname{dst}
	for at := dst; at != src; at = prev[at] {
		path = append(path, prev[at])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[dst], nil
}

// GraphHandlerFunc returns an http.HandlerFunc for GET /graph: the
// controller's current aggregated link-state, as a node/edge dump.
func GraphHandlerFunc(source func() overlay.LinkState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		g := GraphFromLinkState(source())
		nodes := make([]*GraphNode, 0, len(g.Nodes))
		for _, n := range g.Nodes {
			nodes = append(nodes, n)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
	}
}

// PathHandlerFunc returns an http.HandlerFunc for GET
// /path?from=<host>&to=<host>: a one-off shortest-path query over the
// controller's current aggregated link-state, independent of any
// member's own routing computation.
func PathHandlerFunc(source func() overlay.LinkState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		from := overlay.Hostname(r.URL.Query().Get("from"))
		to := overlay.Hostname(r.URL.Query().Get("to"))
		if from == "" || to == "" {
			jsonError(w, http.StatusBadRequest, "from and to query parameters are required")
			return
		}

		path, cost, err := GraphFromLinkState(source()).ShortestPath(from, to)
		switch {
		case errors.Is(err, errNodeNotFound):
			jsonError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, errNoPath):
			jsonError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"path": path, "cost": cost})
	}
}

// --- priority queue for ShortestPath ---

type pathItem struct {
	host  overlay.Hostname
	cost  overlay.Cost
	index int
}

type pathQueue []*pathItem

func (pq pathQueue) Len() int           { return len(pq) }
func (pq pathQueue) Less(i, j int) bool { return pq[i].cost < pq[j].cost }
func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	item := x.(*pathItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
