package taxonomy

import (
	"errors"
	"fmt"
)

// #region constants

// NumClasses is the number of known classes the HAR model emits.
const NumClasses = 12

// UnknownID is the wire id of the Unknown sentinel. Only used at the
// external interface; internally Unknown is a tagged Class.
const UnknownID = 12

// ErrOutOfRangeClass is reported for ids outside 0..12. Telemetry only:
// the mapper still answers GroupUnknown.
var ErrOutOfRangeClass = errors.New("class id out of range")

var classNames = [NumClasses + 1]string{
	"Standing", // 0
	"Sitting",  // 1
	"Lying",    // 2
	"Walking",  // 3
	"Stairs",   // 4
	"Bends",    // 5
	"Arms",     // 6
	"Crouch",   // 7
	"Cycling",  // 8
	"Jogging",  // 9
	"Running",  // 10
	"Jump",     // 11
	"Unknown",  // 12
}

// Named ids used by tests and synthetic drivers.
const (
	Standing = 0
	Sitting  = 1
	Lying    = 2
	Walking  = 3
	Stairs   = 4
	Cycling  = 8
	Jump     = 11
)

// #endregion constants

// #region class

// Class is the classifier output: either Known(0..11) or Unknown.
type Class struct {
	id    uint8
	known bool
}

// Known returns the known class id. Panics if id is not in 0..11.
func Known(id int) Class {
	if id < 0 || id >= NumClasses {
		panic(fmt.Sprintf("taxonomy: known class id %d out of range", id))
	}
	return Class{id: uint8(id), known: true}
}

// Unknown returns the rejection sentinel.
func Unknown() Class {
	return Class{}
}

// FromID converts a wire id. 12 is Unknown; anything else outside 0..11
// is Unknown plus ErrOutOfRangeClass.
func FromID(id int) (Class, error) {
	switch {
	case id >= 0 && id < NumClasses:
		return Known(id), nil
	case id == UnknownID:
		return Unknown(), nil
	default:
		return Unknown(), fmt.Errorf("%w: %d", ErrOutOfRangeClass, id)
	}
}

// IsKnown reports whether c is a known class.
func (c Class) IsKnown() bool { return c.known }

// ID returns the wire id (12 for Unknown).
func (c Class) ID() int {
	if !c.known {
		return UnknownID
	}
	return int(c.id)
}

// Slot returns the histogram slot for c in [0, NumClasses].
func (c Class) Slot() int { return c.ID() }

func (c Class) String() string { return classNames[c.ID()] }

// Group maps the class onto the operational taxonomy.
func (c Class) Group() Group {
	g, _ := MapTo4Class(c.ID())
	return g
}

// #endregion class

// #region group

// Group is the 4-class operational id.
type Group uint8

const (
	Locomotion   Group = 0
	Transition   Group = 1
	Stationary   Group = 2
	GroupUnknown Group = 3
)

func (g Group) String() string {
	switch g {
	case Locomotion:
		return "Locomotion"
	case Transition:
		return "Transition"
	case Stationary:
		return "Stationary"
	default:
		return "Unknown"
	}
}

// MapTo4Class is total over ints. Out-of-range ids answer GroupUnknown
// together with ErrOutOfRangeClass.
func MapTo4Class(id int) (Group, error) {
	switch id {
	case 0, 1, 2:
		return Stationary, nil
	case 3, 8, 9, 10:
		return Locomotion, nil
	case 4, 5, 6, 7, 11:
		return Transition, nil
	case UnknownID:
		return GroupUnknown, nil
	}
	return GroupUnknown, fmt.Errorf("%w: %d", ErrOutOfRangeClass, id)
}

// Representative picks a canonical class for a group; GroupUnknown has none.
func Representative(g Group) Class {
	switch g {
	case Locomotion:
		return Known(Walking)
	case Transition:
		return Known(Stairs)
	case Stationary:
		return Known(Sitting)
	default:
		return Unknown()
	}
}

// #endregion group

// Name returns the display name for a wire id, or "" if out of range.
func Name(id int) string {
	if id < 0 || id > UnknownID {
		return ""
	}
	return classNames[id]
}
