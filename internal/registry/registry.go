// Package registry indexes the identified blocks of a document for lookup and
// content replacement during a run.
package registry

import (
	"fmt"
	"iter"
	"sync"

	"git.home.luguber.info/inful/mdexec/internal/docmodel"
	"git.home.luguber.info/inful/mdexec/internal/foundation/errors"
	"git.home.luguber.info/inful/mdexec/internal/markdown"
)

// Handle is a live reference to one identified block.
//
// Content reads return the latest value set during the run; the first read
// returns the block content as parsed.
type Handle struct {
	reg   *Registry
	block *docmodel.Block

	content string
	dirty   bool
}

// ID returns the block identifier.
func (h *Handle) ID() string { return h.block.ID() }

// Kind returns the block kind.
func (h *Handle) Kind() docmodel.Kind { return h.block.Kind }

// Lang returns the declared language of a fenced block ("" for regions).
func (h *Handle) Lang() string { return h.block.Lang() }

// Line returns the 1-based line of the block's opening delimiter.
func (h *Handle) Line() int { return h.block.Line }

// Block returns the underlying parsed block.
func (h *Handle) Block() *docmodel.Block { return h.block }

// Content returns the current content of the block.
func (h *Handle) Content() string {
	h.reg.mu.RLock()
	defer h.reg.mu.RUnlock()
	return h.content
}

// SetContent replaces the block content. Writes are visible to later reads in
// the same run and are serialised into the output document.
//
// Content that would end the block early is rejected and the block keeps its
// previous content.
func (h *Handle) SetContent(content string) error {
	if err := h.block.CheckContent(content); err != nil {
		return err
	}
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	h.content = content
	h.dirty = true
	return nil
}

// Dirty reports whether SetContent was called.
func (h *Handle) Dirty() bool {
	h.reg.mu.RLock()
	defer h.reg.mu.RUnlock()
	return h.dirty
}

// Registry maps identifiers to blocks. It is built once per run.
type Registry struct {
	mu      sync.RWMutex
	doc     *docmodel.Document
	handles []*Handle
	byID    map[string][]*Handle
}

// New builds a registry for every identified block of doc.
func New(doc *docmodel.Document) *Registry {
	r := &Registry{
		doc:  doc,
		byID: make(map[string][]*Handle),
	}
	for _, b := range doc.Identified() {
		h := &Handle{reg: r, block: b, content: doc.Content(b)}
		r.handles = append(r.handles, h)
		r.byID[b.ID()] = append(r.byID[b.ID()], h)
	}
	return r
}

// Document returns the parsed document the registry was built from.
func (r *Registry) Document() *docmodel.Document {
	return r.doc
}

// Get returns the single block with the given identifier.
//
// It fails with a not_found error when no block has the identifier and with a
// not_unique error when more than one does.
func (r *Registry) Get(id string) (*Handle, error) {
	matches := r.byID[id]
	switch len(matches) {
	case 0:
		return nil, errors.NotFoundError(fmt.Sprintf("get_block: no block with id %q", id)).
			WithContext("id", id).
			Build()
	case 1:
		return matches[0], nil
	default:
		lines := make([]int, 0, len(matches))
		for _, h := range matches {
			lines = append(lines, h.Line())
		}
		return nil, errors.NotUniqueError(fmt.Sprintf("get_block: id %q matches %d blocks", id, len(matches))).
			WithContext("id", id).
			WithContext("lines", lines).
			Build()
	}
}

// Query yields every block with the given identifier in source order. An empty
// id yields every identified block. The sequence is lazy and may be iterated
// more than once.
func (r *Registry) Query(id string) iter.Seq[*Handle] {
	return func(yield func(*Handle) bool) {
		src := r.handles
		if id != "" {
			src = r.byID[id]
		}
		for _, h := range src {
			if !yield(h) {
				return
			}
		}
	}
}

// HandleFor returns the handle wrapping b, if b carries an identifier.
func (r *Registry) HandleFor(b *docmodel.Block) (*Handle, bool) {
	for _, h := range r.byID[b.ID()] {
		if h.block == b {
			return h, true
		}
	}
	return nil, false
}

// Len returns the number of identified blocks.
func (r *Registry) Len() int {
	return len(r.handles)
}

// Edits returns one rewrite edit per block whose content was changed.
func (r *Registry) Edits() []markdown.Edit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var edits []markdown.Edit
	for _, h := range r.handles {
		if !h.dirty {
			continue
		}
		if e, changed := r.doc.EditFor(h.block, h.content); changed {
			edits = append(edits, e)
		}
	}
	return edits
}

// Render serialises the document with every changed block rewritten.
func (r *Registry) Render() (string, error) {
	return r.doc.Apply(r.Edits())
}
