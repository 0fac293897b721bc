// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package taskgroup implements the planner, which turns a task list
// plus the loaded element registry into root task groups and a
// channel wiring table, and the executor, which drives each group on
// its own worker goroutine.
package taskgroup

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clustercockpit-labs/dcrunner/internal/channel"
	"github.com/clustercockpit-labs/dcrunner/internal/msgtype"
	"github.com/clustercockpit-labs/dcrunner/internal/plugin"
	"github.com/clustercockpit-labs/dcrunner/pkg/schema"
)

var (
	ErrUnknownElement   = errors.New("taskgroup: unknown element")
	ErrPortMismatch     = errors.New("taskgroup: port mismatch")
	ErrUnreachableTasks = errors.New("taskgroup: unreachable tasks (cycle or orphan)")
	ErrDuplicateTaskID  = errors.New("taskgroup: duplicate task id")
)

// ElementPreBuild is one resolved, not-yet-constructed element: its
// descriptor and the serialized configuration text handed to New.
type ElementPreBuild struct {
	TaskID     string
	Descriptor plugin.Descriptor
	ConfigText string

	// DownstreamAccepted[port] lists every consumer's accepted-type set
	// wired to that send port, passed through to the pipeline.Handle so
	// elements can call RecheckType.
	DownstreamAccepted [][][]msgtype.Type
}

// Chain is an ordered fusion chain, head (the root, driven by the
// worker thread) first, tail last.
type Chain struct {
	Elements []ElementPreBuild
}

func (c Chain) Head() ElementPreBuild { return c.Elements[0] }
func (c Chain) Tail() ElementPreBuild { return c.Elements[len(c.Elements)-1] }

// Plan is the planner's output: every chain, keyed by its root task
// id, plus the real (non-fused) channel connections needed to wire
// chains together.
type Plan struct {
	Chains          map[string]*Chain
	ChannelCapacity int

	// RecvEndpoints[rootID][port] holds the shared inbound endpoint for
	// that chain's tail's receive port, or nil if the port is fed
	// entirely by fusion (impossible for a tail, kept for symmetry with
	// SendEndpoints indexing).
	RecvEndpoints map[string][]channel.Endpoint

	// SendEndpoints[rootID][port] holds every downstream endpoint the
	// root's own Sender for that send port must fan out to, in
	// registration order.
	SendEndpoints map[string][][]channel.Endpoint
}

type taskNode struct {
	cfg        schema.TaskConfig
	descriptor plugin.Descriptor
	from       [][]PortRef // parsed, indexed by recv port
	fusable    bool        // exactly one send port, exactly one downstream receiver
	singleDown PortRef     // valid iff fusable: the one downstream (task,port) it feeds
}

// Build runs the full planning algorithm.
func Build(tasks []schema.TaskConfig, registry *plugin.Registry, channelCapacity int) (*Plan, error) {
	if channelCapacity <= 0 {
		channelCapacity = channel.DefaultCapacity
	}

	nodes := make(map[string]*taskNode, len(tasks))
	order := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if _, dup := nodes[t.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTaskID, t.ID)
		}
		d, ok := registry.Lookup(t.Element)
		if !ok {
			return nil, fmt.Errorf("%w: task %s references element %q", ErrUnknownElement, t.ID, t.Element)
		}
		if _, err := serializeConf(t); err != nil {
			return nil, fmt.Errorf("taskgroup: task %s: %w", t.ID, err)
		}
		nodes[t.ID] = &taskNode{cfg: t, descriptor: d}
		order = append(order, t.ID)
	}

	// step 2: validate shape and parse `from` into PortRefs.
	downstreamCount := map[PortRef]int{} // how many distinct (srcTask,srcPort) keys are referenced as a source
	for _, id := range order {
		n := nodes[id]
		if len(n.cfg.From) != n.descriptor.RecvPorts {
			return nil, fmt.Errorf("%w: task %s has %d recv ports but %d from-entries",
				ErrPortMismatch, id, n.descriptor.RecvPorts, len(n.cfg.From))
		}
		n.from = make([][]PortRef, len(n.cfg.From))
		for portIdx, sources := range n.cfg.From {
			if len(sources) == 0 {
				return nil, fmt.Errorf("%w: task %s recv port %d has no sources", ErrPortMismatch, id, portIdx)
			}
			refs := make([]PortRef, 0, len(sources))
			for _, s := range sources {
				ref, err := ParsePortRef(s)
				if err != nil {
					return nil, err
				}
				src, ok := nodes[ref.TaskID]
				if !ok {
					return nil, fmt.Errorf("%w: task %s references non-existent task %s", ErrPortMismatch, id, ref.TaskID)
				}
				if ref.Port < 0 || ref.Port >= src.descriptor.SendPorts {
					return nil, fmt.Errorf("%w: task %s references out-of-range send port %s", ErrPortMismatch, id, ref.String())
				}
				produced := src.descriptor.ProducedTypes[ref.Port]
				if !msgtype.AnyAccepts(n.descriptor.AcceptedTypes[portIdx], produced) {
					return nil, fmt.Errorf("%w: task %s recv port %d does not accept %s produced by %s",
						ErrPortMismatch, id, portIdx, produced, ref.String())
				}
				refs = append(refs, ref)
				downstreamCount[ref]++
			}
			n.from[portIdx] = refs
		}
	}
	for id, n := range nodes {
		for port := 0; port < n.descriptor.SendPorts; port++ {
			if downstreamCount[PortRef{TaskID: id, Port: port}] == 0 {
				return nil, fmt.Errorf("%w: task %s send port %d has no receiver", ErrPortMismatch, id, port)
			}
		}
	}

	// sendAccepted[id][port] lists every consumer's accepted-type set
	// wired to that send port, used to build each element's re-check
	// cache.
	sendAccepted := make(map[string][][][]msgtype.Type, len(nodes))
	for id, n := range nodes {
		sendAccepted[id] = make([][][]msgtype.Type, n.descriptor.SendPorts)
	}
	for _, consumer := range nodes {
		for recvPort, refs := range consumer.from {
			for _, ref := range refs {
				sendAccepted[ref.TaskID][ref.Port] = append(
					sendAccepted[ref.TaskID][ref.Port],
					consumer.descriptor.AcceptedTypes[recvPort],
				)
			}
		}
	}

	// step 3: fusable flag. A task is fusable iff it has exactly one
	// send port and that port feeds exactly one downstream (task,port)
	// occurrence.
	for id, n := range nodes {
		if n.descriptor.SendPorts != 1 {
			continue
		}
		ref := PortRef{TaskID: id, Port: 0}
		if downstreamCount[ref] != 1 {
			continue
		}
		// find the single consumer.
		for _, other := range nodes {
			for portIdx, refs := range other.from {
				for _, r := range refs {
					if r == ref {
						n.fusable = true
						n.singleDown = PortRef{TaskID: other.cfg.ID, Port: portIdx}
					}
				}
			}
		}
	}

	// step 4: roots. A task is a root unless it is fusable and its one
	// downstream consumes it alone (SPSC on the consumer side: the
	// consumer has a single receive port and that port's from-list has
	// exactly one entry).
	isRoot := make(map[string]bool, len(nodes))
	for id, n := range nodes {
		root := true
		if n.fusable {
			consumer := nodes[n.singleDown.TaskID]
			if consumer.descriptor.RecvPorts == 1 && len(consumer.from[n.singleDown.Port]) == 1 {
				root = false
			}
		}
		isRoot[id] = root
	}

	// step 5: grow each root's chain by walking its single fusable
	// upstream, if any.
	chains := make(map[string]*Chain, len(nodes))
	placed := make(map[string]bool, len(nodes))
	for _, id := range order {
		if !isRoot[id] {
			continue
		}
		elems := []ElementPreBuild{preBuild(nodes[id], sendAccepted[id])}
		placed[id] = true
		cur := nodes[id]
		for {
			if cur.descriptor.RecvPorts != 1 || len(cur.from[0]) != 1 {
				break
			}
			upstream := cur.from[0][0]
			if upstream.Port != 0 {
				break
			}
			up := nodes[upstream.TaskID]
			if up == nil || !up.fusable || isRoot[upstream.TaskID] {
				break
			}
			elems = append(elems, preBuild(up, sendAccepted[upstream.TaskID]))
			placed[upstream.TaskID] = true
			cur = up
		}
		chains[id] = &Chain{Elements: elems}
	}

	// step 6: every task must appear in exactly one chain.
	if len(placed) != len(nodes) {
		missing := make([]string, 0)
		for id := range nodes {
			if !placed[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachableTasks, missing)
	}

	// position lookup for detecting chain-internal edges.
	rootOf := make(map[string]string, len(nodes))
	posInChain := make(map[string]int, len(nodes))
	for rootID, c := range chains {
		for i, e := range c.Elements {
			rootOf[e.TaskID] = rootID
			posInChain[e.TaskID] = i
		}
	}

	// step 7: build real channels for every connection that is not a
	// chain-internal fusion edge.
	destEndpoint := make(map[PortRef]channel.Endpoint)
	sendEndpoints := make(map[string][][]channel.Endpoint, len(chains))
	for rootID, c := range chains {
		sendEndpoints[rootID] = make([][]channel.Endpoint, c.Head().Descriptor.SendPorts)
	}

	recvEndpoints := make(map[string][]channel.Endpoint, len(chains))
	for rootID, c := range chains {
		tail := c.Tail()
		tailNode := nodes[tail.TaskID]
		eps := make([]channel.Endpoint, tailNode.descriptor.RecvPorts)
		for port, refs := range tailNode.from {
			if isInternalEdge(tail.TaskID, port, refs, rootOf, posInChain) {
				continue // handled by inlining; no real channel
			}
			dest := PortRef{TaskID: tail.TaskID, Port: port}
			ep, ok := destEndpoint[dest]
			if !ok {
				ep = channel.NewEndpoint(channelCapacity)
				destEndpoint[dest] = ep
			}
			eps[port] = ep
			for _, src := range refs {
				srcRoot := rootOf[src.TaskID]
				sendEndpoints[srcRoot][src.Port] = append(sendEndpoints[srcRoot][src.Port], ep)
			}
		}
		recvEndpoints[rootID] = eps
	}

	return &Plan{
		Chains:          chains,
		ChannelCapacity: channelCapacity,
		RecvEndpoints:   recvEndpoints,
		SendEndpoints:   sendEndpoints,
	}, nil
}

// isInternalEdge reports whether task (taskID, port)'s single source
// is in fact its own chain's next fused element, a link resolved by
// inlining rather than a real channel.
func isInternalEdge(taskID string, port int, refs []PortRef, rootOf map[string]string, posInChain map[string]int) bool {
	if port != 0 || len(refs) != 1 {
		return false
	}
	src := refs[0]
	return rootOf[src.TaskID] == rootOf[taskID] && posInChain[src.TaskID] == posInChain[taskID]+1
}

func preBuild(n *taskNode, downstreamAccepted [][][]msgtype.Type) ElementPreBuild {
	confText, _ := serializeConf(n.cfg)
	return ElementPreBuild{
		TaskID:             n.cfg.ID,
		Descriptor:         n.descriptor,
		ConfigText:         confText,
		DownstreamAccepted: downstreamAccepted,
	}
}

func serializeConf(t schema.TaskConfig) (string, error) {
	if t.Conf == nil {
		return "{}", nil
	}
	b, err := json.Marshal(t.Conf)
	if err != nil {
		return "", fmt.Errorf("failed to serialize element-config tree: %w", err)
	}
	return string(b), nil
}
