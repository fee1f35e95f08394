// Copyright 2024 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package authtree holds the SKI-indexed certificate authority tree the
// validator builds while walking manifests: one node per valid CA or TA
// certificate, linked to its issuer by a non-owning parent pointer so the
// tree can never form a cycle by construction.
package authtree

import (
	"github.com/netsec-ethz/rpki-client/internal/resources"
	"github.com/netsec-ethz/rpki-client/internal/rpkiobj"
)

// Node is one certificate in the authority tree.
type Node struct {
	SKI      []byte
	Cert     *rpkiobj.Cert
	Parent   *Node // nil for a trust anchor
	Children []*Node

	// Poisoned marks a node reached through a duplicate SKI collision.
	// Everything under a poisoned node is excluded from the VRP store even
	// if individually well-formed.
	Poisoned bool

	// TAL is set only on a root node (InsertRoot), naming the trust anchor
	// that provenances every VRP derived from this tree.
	TAL string
}

// Tree is an SKI-indexed forest of authority nodes, one tree per trust
// anchor loaded.
type Tree struct {
	byTal map[string]*Node   // TAL name -> root
	bySKI map[string][]*Node // SKI -> all nodes claiming it (usually one)
}

// New returns an empty authority tree.
func New() *Tree {
	return &Tree{
		byTal: make(map[string]*Node),
		bySKI: make(map[string][]*Node),
	}
}

// InsertRoot adds a trust anchor as the root of tal's tree. Loading the
// same TAL twice is a caller error.
func (t *Tree) InsertRoot(tal string, cert *rpkiobj.Cert) (*Node, error) {
	if _, ok := t.byTal[tal]; ok {
		return nil, errAlreadyLoaded(tal)
	}
	n := &Node{SKI: cert.SKI, Cert: cert, TAL: tal}
	t.byTal[tal] = n
	t.index(n)
	return n, nil
}

// Insert adds a CA certificate as a child of parent. Returns the new node.
// If ski collides with the SKI of an existing node in the same trust
// anchor's tree, both the existing and new node are marked Poisoned (RFC
// 6487 requires SKI uniqueness within a trust anchor's tree; rpki-client
// treats a collision as an attack rather than picking a winner). The same
// SKI appearing under two different trust anchors poisons neither.
func (t *Tree) Insert(parent *Node, cert *rpkiobj.Cert) *Node {
	n := &Node{SKI: cert.SKI, Cert: cert, Parent: parent}
	parent.Children = append(parent.Children, n)
	tal := TALName(parent)
	for _, e := range t.bySKI[string(cert.SKI)] {
		if TALName(e) == tal {
			n.Poisoned = true
			e.Poisoned = true
		}
	}
	t.index(n)
	return n
}

func (t *Tree) index(n *Node) {
	key := string(n.SKI)
	t.bySKI[key] = append(t.bySKI[key], n)
}

// Lookup returns every node registered under ski (usually zero or one;
// more than one means the SKI is reused, either within one trust anchor's
// tree, where the nodes are poisoned, or across trust anchors).
func (t *Tree) Lookup(ski []byte) []*Node {
	return t.bySKI[string(ski)]
}

// Root returns the trust anchor node loaded for tal, if any.
func (t *Tree) Root(tal string) (*Node, bool) {
	n, ok := t.byTal[tal]
	return n, ok
}

// Ancestors returns the path from n's immediate parent up to the root,
// nearest first.
func Ancestors(n *Node) []*Node {
	var chain []*Node
	for p := n.Parent; p != nil; p = p.Parent {
		chain = append(chain, p)
	}
	return chain
}

// IsPoisoned reports whether n or any ancestor of n is poisoned.
func IsPoisoned(n *Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Poisoned {
			return true
		}
	}
	return false
}

// GroundedAS resolves n's effective AS resource set by walking up through
// Inherit markers to the nearest ancestor (including n itself) that
// states resources explicitly.
func GroundedAS(n *Node) resources.ASSet {
	for cur := n; cur != nil; cur = cur.Parent {
		if !cur.Cert.AS.Inherit {
			return cur.Cert.AS
		}
	}
	return resources.ASSet{}
}

// GroundedIP resolves n's effective IP resource set the same way GroundedAS
// does, independently per address family since a certificate may inherit
// one family while stating the other explicitly.
func GroundedIP(n *Node) resources.IPResourceSet {
	var out resources.IPResourceSet
	out.V4 = groundedFamily(n, resources.AFIv4)
	out.V6 = groundedFamily(n, resources.AFIv6)
	return out
}

func groundedFamily(n *Node, afi resources.AFI) resources.IPFamilySet {
	for cur := n; cur != nil; cur = cur.Parent {
		fs := cur.Cert.IP.V4
		if afi == resources.AFIv6 {
			fs = cur.Cert.IP.V6
		}
		if !fs.Inherit {
			return fs
		}
	}
	return resources.IPFamilySet{}
}

// TALName returns the provenance name of the trust anchor n descends from,
// by walking up to the root.
func TALName(n *Node) string {
	cur := n
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur.TAL
}

type errAlreadyLoaded string

func (e errAlreadyLoaded) Error() string {
	return "TAL already loaded: " + string(e)
}
