package tubes

// Stage is anything Series can chain: either a ready-made Drain (itself
// possibly a Fount, like a Siphon or Diverter), or a bare Tube, which Series
// wraps in a new Siphon. Avoiding a process-wide adapter registry (the
// teacher's source material flags that as "accidental, not essential," see
// DESIGN.md) keeps this an explicit, inspectable list.
type Stage any

func asDrain(s Stage) Drain {
	switch v := s.(type) {
	case Drain:
		return v
	case Tube:
		return NewSiphon(v)
	default:
		return nil
	}
}

// Series adapts each stage to a Drain (wrapping bare Tubes in a fresh
// Siphon) and connects them end to end, returning the leftmost drain. Its
// downstream fount — the value its FlowingFrom returns once an upstream is
// attached, so fount.FlowTo(chain) yields it — is the chain's overall
// output. TypeMismatch is raised eagerly, the moment two adjacent stages
// turn out to disagree on types.
func Series(first Stage, rest ...Stage) (Drain, error) {
	head := asDrain(first)
	if head == nil {
		return nil, ErrInvalidStage
	}

	var current any = head
	for _, next := range rest {
		nextDrain := asDrain(next)
		if nextDrain == nil {
			return nil, ErrInvalidStage
		}

		fount, ok := current.(Fount)
		if !ok {
			return nil, ErrNoUpstream
		}
		if _, err := fount.FlowTo(nextDrain); err != nil {
			return nil, err
		}
		current = nextDrain
	}

	return head, nil
}
