package types

import (
	"fmt"
	"sort"
	"strings"
)

// DirectionFlag marks sides of the simulation domain, used for closed-domain boundaries
type DirectionFlag uint8

const (
	DirectionNone  DirectionFlag = 0
	DirectionLeft  DirectionFlag = 1 << 0
	DirectionRight DirectionFlag = 1 << 1
	DirectionDown  DirectionFlag = 1 << 2
	DirectionUp    DirectionFlag = 1 << 3
	DirectionBack  DirectionFlag = 1 << 4
	DirectionFront DirectionFlag = 1 << 5
	DirectionAll                 = DirectionLeft | DirectionRight | DirectionDown | DirectionUp |
		DirectionBack | DirectionFront
)

var DirectionNameMap = map[string]DirectionFlag{
	"none":  DirectionNone,
	"left":  DirectionLeft,
	"right": DirectionRight,
	"down":  DirectionDown,
	"up":    DirectionUp,
	"back":  DirectionBack,
	"front": DirectionFront,
	"all":   DirectionAll,
}

// Lower returns the flag for the low side of axis, Upper the high side
func Lower(axis int) DirectionFlag {
	return DirectionFlag(1 << (2 * axis))
}

func Upper(axis int) DirectionFlag {
	return DirectionFlag(1 << (2*axis + 1))
}

func (df DirectionFlag) Has(flag DirectionFlag) bool {
	return df&flag != 0
}

func (df DirectionFlag) String() string {
	switch df {
	case DirectionNone:
		return "none"
	case DirectionAll:
		return "all"
	}
	var names []string
	for name, f := range DirectionNameMap {
		if f != DirectionAll && f != DirectionNone && df.Has(f) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// ParseDirections combines a list of side names into one flag
func ParseDirections(names []string) (df DirectionFlag, err error) {
	for _, name := range names {
		f, ok := DirectionNameMap[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			err = fmt.Errorf("unknown boundary direction %q", name)
			return
		}
		df |= f
	}
	return
}
