package population

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"vrpcore/internal/solver"
)

type coordinate struct {
	X, Y int
}

func (c coordinate) add(o coordinate) coordinate { return coordinate{c.X + o.X, c.Y + o.Y} }

var directions = []coordinate{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// node is a cell of the growing self-organizing map with its own small archive.
type node struct {
	coord   coordinate
	weights []float64
	error   float64
	hits    int
	storage *Elitism
}

type networkConfig struct {
	spreadFactor       float64
	distributionFactor float64
	learningRate       float64
	maxNodes           int
}

// network is a growing self-organizing map over fitness vectors. Individuals are kept in
// the archive of their best matching node, which keeps the retained set spread over the
// fitness space.
type network struct {
	config           networkConfig
	nodes            []*node
	index            map[coordinate]*node
	inputs           map[*solver.Individual][]float64
	growingThreshold float64
	newStorage       func() *Elitism
}

// minNodes is the size of the initial 2x2 grid.
const minNodes = 4

func newNetwork(config networkConfig, individuals []*solver.Individual, inputs [][]float64, newStorage func() *Elitism) *network {
	dimension := len(inputs[0])
	n := &network{
		config:           config,
		index:            map[coordinate]*node{},
		inputs:           map[*solver.Individual][]float64{},
		growingThreshold: -float64(dimension) * math.Log(config.spreadFactor),
		newStorage:       newStorage,
	}
	grid := []coordinate{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for i, c := range grid {
		n.addNode(c, append([]float64(nil), inputs[i%len(inputs)]...))
	}
	for i, ind := range individuals {
		n.store(ind, inputs[i])
	}
	return n
}

func (n *network) addNode(c coordinate, weights []float64) *node {
	nd := &node{coord: c, weights: weights, storage: n.newStorage()}
	n.nodes = append(n.nodes, nd)
	n.index[c] = nd
	return nd
}

// store trains the map with the input and keeps the individual in its best matching node.
func (n *network) store(individual *solver.Individual, input []float64) {
	nd := n.bestMatchingNode(input)
	previous := nd.storage.Ranked()
	n.inputs[individual] = input
	nd.storage.Add(individual)
	n.forgetEvicted(nd, individual, previous)
	nd.hits++
	nd.error += floats.Distance(nd.weights, input, 2)
	n.adapt(nd, input)

	if nd.error > n.growingThreshold {
		if n.isBoundary(nd) && len(n.nodes) < n.config.maxNodes {
			n.grow(nd)
		} else {
			n.distribute(nd)
		}
	}
}

// forgetEvicted drops the inputs of individuals the node archive no longer keeps.
func (n *network) forgetEvicted(nd *node, added *solver.Individual, previous []solver.RankedIndividual) {
	kept := make(map[*solver.Individual]struct{}, nd.storage.Size())
	for _, r := range nd.storage.Ranked() {
		kept[r.Individual] = struct{}{}
	}
	if _, ok := kept[added]; !ok {
		delete(n.inputs, added)
	}
	for _, r := range previous {
		if _, ok := kept[r.Individual]; !ok {
			delete(n.inputs, r.Individual)
		}
	}
}

// bestMatchingNode returns the closest node; ties go to the older node.
func (n *network) bestMatchingNode(input []float64) *node {
	var best *node
	bestDistance := math.MaxFloat64
	for _, nd := range n.nodes {
		if d := floats.Distance(nd.weights, input, 2); d < bestDistance {
			best, bestDistance = nd, d
		}
	}
	return best
}

func (n *network) neighbours(nd *node) []*node {
	var out []*node
	for _, d := range directions {
		if nb, ok := n.index[nd.coord.add(d)]; ok {
			out = append(out, nb)
		}
	}
	return out
}

func (n *network) isBoundary(nd *node) bool {
	return len(n.neighbours(nd)) < len(directions)
}

// adapt moves the winner and, with half the rate, its neighbours towards the input.
func (n *network) adapt(nd *node, input []float64) {
	diff := make([]float64, len(input))
	floats.SubTo(diff, input, nd.weights)
	floats.AddScaled(nd.weights, n.config.learningRate, diff)
	for _, nb := range n.neighbours(nd) {
		floats.SubTo(diff, input, nb.weights)
		floats.AddScaled(nb.weights, n.config.learningRate/2, diff)
	}
}

// grow adds nodes on every free side of a boundary node. New weights extrapolate from the
// node on the opposite side when there is one.
func (n *network) grow(nd *node) {
	for _, d := range directions {
		if len(n.nodes) >= n.config.maxNodes {
			break
		}
		c := nd.coord.add(d)
		if _, taken := n.index[c]; taken {
			continue
		}
		weights := append([]float64(nil), nd.weights...)
		if opposite, ok := n.index[coordinate{nd.coord.X - d.X, nd.coord.Y - d.Y}]; ok {
			diff := make([]float64, len(weights))
			floats.SubTo(diff, nd.weights, opposite.weights)
			floats.AddScaledTo(weights, nd.weights, 1, diff)
		}
		n.addNode(c, weights)
	}
	nd.error = n.growingThreshold / 2
}

func (n *network) distribute(nd *node) {
	nd.error = n.growingThreshold / 2
	for _, nb := range n.neighbours(nd) {
		nb.error *= 1 + n.config.distributionFactor
	}
}

// rebalance retrains the map with the retained individuals and drops nodes left empty.
func (n *network) rebalance() {
	type stored struct {
		individual *solver.Individual
		input      []float64
	}
	var all []stored
	for _, nd := range n.nodes {
		for _, r := range nd.storage.Ranked() {
			all = append(all, stored{individual: r.Individual, input: n.inputs[r.Individual]})
		}
		nd.storage.clear()
		nd.error = 0
		nd.hits = 0
	}
	clear(n.inputs)
	for _, s := range all {
		n.store(s.individual, s.input)
	}

	kept := make([]*node, 0, len(n.nodes))
	for i, nd := range n.nodes {
		if nd.storage.Size() == 0 && len(kept)+len(n.nodes)-i > minNodes {
			delete(n.index, nd.coord)
			continue
		}
		kept = append(kept, nd)
	}
	n.nodes = kept
}

// entries returns all entries kept by the nodes.
func (n *network) entries() []*entry {
	var out []*entry
	for _, nd := range n.nodes {
		out = append(out, nd.storage.entries...)
	}
	return out
}

func (n *network) size() int {
	total := 0
	for _, nd := range n.nodes {
		total += nd.storage.Size()
	}
	return total
}

// occupied returns nodes with individuals sorted by coordinate.
func (n *network) occupied() []*node {
	var out []*node
	for _, nd := range n.nodes {
		if nd.storage.Size() > 0 {
			out = append(out, nd)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].coord.X != out[j].coord.X {
			return out[i].coord.X < out[j].coord.X
		}
		return out[i].coord.Y < out[j].coord.Y
	})
	return out
}

func (n *network) String() string {
	errs := make([]float64, len(n.nodes))
	for i, nd := range n.nodes {
		errs[i] = nd.error
	}
	mean, std := stat.MeanStdDev(errs, nil)
	return fmt.Sprintf("nodes=%d individuals=%d error(mean=%.3f std=%.3f)", len(n.nodes), n.size(), mean, std)
}
