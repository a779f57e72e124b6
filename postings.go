package seiche

import "sort"

// postingList is one term's decoded postings: parallel arrays sorted by
// docID, with optional per-document positions.
type postingList struct {
	docIDs    []uint32
	tfs       []uint32
	positions [][]uint32 // nil when the index stores no locations
}

func (p *postingList) df() int { return len(p.docIDs) }

// find returns the index of docID, or false.
func (p *postingList) find(docID uint32) (int, bool) {
	i := sort.Search(len(p.docIDs), func(i int) bool {
		return p.docIDs[i] >= docID
	})
	if i >= len(p.docIDs) || p.docIDs[i] != docID {
		return i, false
	}
	return i, true
}

// lowerBound returns the smallest docID >= d in the list.
func (p *postingList) lowerBound(d uint32) (uint32, bool) {
	i := sort.Search(len(p.docIDs), func(i int) bool {
		return p.docIDs[i] >= d
	})
	if i >= len(p.docIDs) {
		return 0, false
	}
	return p.docIDs[i], true
}

func (p *postingList) tf(docID uint32) uint32 {
	if i, ok := p.find(docID); ok {
		return p.tfs[i]
	}
	return 0
}

func (p *postingList) locations(docID uint32) []uint32 {
	if p.positions == nil {
		return nil
	}
	if i, ok := p.find(docID); ok {
		return p.positions[i]
	}
	return nil
}

// merge unions another posting list into this one. Lists from different
// terms may share documents; tfs add up and positions interleave.
func (p *postingList) merge(o *postingList) {
	if len(p.docIDs) == 0 {
		p.docIDs = append([]uint32(nil), o.docIDs...)
		p.tfs = append([]uint32(nil), o.tfs...)
		if o.positions != nil {
			p.positions = append([][]uint32(nil), o.positions...)
		}
		return
	}
	var (
		ids  []uint32
		tfs  []uint32
		locs [][]uint32
	)
	keepLocs := p.positions != nil && o.positions != nil
	i, j := 0, 0
	for i < len(p.docIDs) || j < len(o.docIDs) {
		switch {
		case j >= len(o.docIDs) || (i < len(p.docIDs) && p.docIDs[i] < o.docIDs[j]):
			ids = append(ids, p.docIDs[i])
			tfs = append(tfs, p.tfs[i])
			if keepLocs {
				locs = append(locs, p.positions[i])
			}
			i++
		case i >= len(p.docIDs) || o.docIDs[j] < p.docIDs[i]:
			ids = append(ids, o.docIDs[j])
			tfs = append(tfs, o.tfs[j])
			if keepLocs {
				locs = append(locs, o.positions[j])
			}
			j++
		default: // same document
			ids = append(ids, p.docIDs[i])
			tfs = append(tfs, p.tfs[i]+o.tfs[j])
			if keepLocs {
				locs = append(locs, mergeLocations(p.positions[i], o.positions[j]))
			}
			i++
			j++
		}
	}
	p.docIDs, p.tfs = ids, tfs
	if keepLocs {
		p.positions = locs
	} else {
		p.positions = nil
	}
}

func mergeLocations(a, b []uint32) []uint32 {
	out := make([]uint32, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		if j >= len(b) || (i < len(a) && a[i] <= b[j]) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	return out
}

// postingList decodes the posting list of term, returning an empty list
// for absent terms.
func (s *Shard) postingList(term string) (*postingList, error) {
	ss := s.terms.Get(term)
	if ss.sz == 0 {
		return &postingList{}, nil
	}
	raw, err := s.file.Read(ss.off, ss.sz)
	if err != nil {
		return nil, err
	}
	r := &sectionReader{b: raw}
	flags, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	hasLocs := flags&1 != 0
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	p := &postingList{
		docIDs: make([]uint32, n),
		tfs:    make([]uint32, n),
	}
	prev := uint32(0)
	for i := range p.docIDs {
		d, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		prev += uint32(d)
		p.docIDs[i] = prev
	}
	if !s.opts.NoTF {
		for i := range p.tfs {
			tf, err := r.Uvarint()
			if err != nil {
				return nil, err
			}
			p.tfs[i] = uint32(tf)
		}
	} else {
		for i := range p.tfs {
			p.tfs[i] = 1
		}
	}
	if hasLocs {
		p.positions = make([][]uint32, n)
		for i := range p.positions {
			np, err := r.Uvarint()
			if err != nil {
				return nil, err
			}
			locs := make([]uint32, np)
			prevPos := uint32(0)
			for j := range locs {
				d, err := r.Uvarint()
				if err != nil {
					return nil, err
				}
				prevPos += uint32(d)
				locs[j] = prevPos
			}
			p.positions[i] = locs
		}
	}
	return p, nil
}

// documentFrequency decodes only the document count of a term's posting
// list; the estimate the validator sorts children by.
func (s *Shard) documentFrequency(term string) int {
	ss := s.terms.Get(term)
	if ss.sz == 0 {
		return 0
	}
	raw, err := s.file.Read(ss.off, ss.sz)
	if err != nil {
		return 0
	}
	r := &sectionReader{b: raw}
	if _, err := r.Uvarint(); err != nil {
		return 0
	}
	n, err := r.Uvarint()
	if err != nil {
		return 0
	}
	return int(n)
}
