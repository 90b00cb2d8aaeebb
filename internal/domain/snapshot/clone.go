package snapshot

// Clone returns a deep copy of s. The reducer uses this to build the
// working copy it mutates-by-replacement on `Accepted`; escalation rollback
// uses the cheaper pointer-swap back to original_snapshot described in
// spec §9 instead of calling Clone again, since original_snapshot was never
// mutated in place.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Entities:          make(map[string]Entity, len(s.Entities)),
		Relationships:     make(map[edgeKey]Edge, len(s.Relationships)),
		RelationshipTypes: make(map[string]RelationshipType, len(s.RelationshipTypes)),
		Meta:              make(Meta, len(s.Meta)),
		creationSeq:       s.creationSeq,
		updateSeq:         s.updateSeq,
	}
	for id, e := range s.Entities {
		out.Entities[id] = e.clone()
	}
	for k, e := range s.Relationships {
		edata := e
		if e.Data != nil {
			edata.Data = cloneValue(e.Data).(map[string]any)
		}
		out.Relationships[k] = edata
	}
	for t, rt := range s.RelationshipTypes {
		out.RelationshipTypes[t] = rt
	}
	for k, v := range s.Meta {
		out.Meta[k] = cloneValue(v)
	}
	return out
}

// AllocateCreatedSeq advances and returns the creation-sequence counter.
// Called by the reducer on a cloned snapshot it is about to mutate, never
// on a snapshot still shared with another owner.
func (s *Snapshot) AllocateCreatedSeq() int {
	s.creationSeq++
	return s.creationSeq
}

// AllocateUpdatedSeq advances and returns the update-sequence counter.
func (s *Snapshot) AllocateUpdatedSeq() int {
	s.updateSeq++
	return s.updateSeq
}
