package domain

// Direction indicates which way a sync cycle moves data
type Direction string

const (
	// DirectionPush mirrors local changes to the remote (delete-before)
	DirectionPush Direction = "push"

	// DirectionPull mirrors remote changes to local (delete-before)
	DirectionPull Direction = "pull"

	// DirectionCross update-copies in both directions without deleting,
	// local to remote first
	DirectionCross Direction = "cross-copy"
)

// IsValid checks if the direction is a known value
func (d Direction) IsValid() bool {
	switch d {
	case DirectionPush, DirectionPull, DirectionCross:
		return true
	}
	return false
}

// Decide reduces the accumulated dirty flags of a batch to a sync direction.
// Reaching a decision with neither flag set is an invariant violation: a
// wake can only ever be raised by a producer that set a flag first.
func Decide(needPush, needPull bool) (Direction, error) {
	switch {
	case needPush && needPull:
		return DirectionCross, nil
	case needPush:
		return DirectionPush, nil
	case needPull:
		return DirectionPull, nil
	}
	return "", ErrNoDirection
}
