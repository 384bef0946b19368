package evdev

import (
	"fmt"
	"strconv"
	"strings"
)

// Linux input event types (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03

	SYN_REPORT = 0
)

// EV_KEY values
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Path kinds, the first segment of a control path ("key/KEY_SPACE").
const (
	KindKey = "key"
	KindAbs = "abs"
	KindRel = "rel"
)

// Key and button codes.
var keyCodes = map[string]uint16{
	"KEY_ESC":          1,
	"KEY_1":            2,
	"KEY_2":            3,
	"KEY_3":            4,
	"KEY_4":            5,
	"KEY_5":            6,
	"KEY_6":            7,
	"KEY_7":            8,
	"KEY_8":            9,
	"KEY_9":            10,
	"KEY_0":            11,
	"KEY_MINUS":        12,
	"KEY_EQUAL":        13,
	"KEY_BACKSPACE":    14,
	"KEY_TAB":          15,
	"KEY_Q":            16,
	"KEY_W":            17,
	"KEY_E":            18,
	"KEY_R":            19,
	"KEY_T":            20,
	"KEY_Y":            21,
	"KEY_U":            22,
	"KEY_I":            23,
	"KEY_O":            24,
	"KEY_P":            25,
	"KEY_LEFTBRACE":    26,
	"KEY_RIGHTBRACE":   27,
	"KEY_ENTER":        28,
	"KEY_LEFTCTRL":     29,
	"KEY_A":            30,
	"KEY_S":            31,
	"KEY_D":            32,
	"KEY_F":            33,
	"KEY_G":            34,
	"KEY_H":            35,
	"KEY_J":            36,
	"KEY_K":            37,
	"KEY_L":            38,
	"KEY_SEMICOLON":    39,
	"KEY_APOSTROPHE":   40,
	"KEY_GRAVE":        41,
	"KEY_LEFTSHIFT":    42,
	"KEY_BACKSLASH":    43,
	"KEY_Z":            44,
	"KEY_X":            45,
	"KEY_C":            46,
	"KEY_V":            47,
	"KEY_B":            48,
	"KEY_N":            49,
	"KEY_M":            50,
	"KEY_COMMA":        51,
	"KEY_DOT":          52,
	"KEY_SLASH":        53,
	"KEY_RIGHTSHIFT":   54,
	"KEY_LEFTALT":      56,
	"KEY_SPACE":        57,
	"KEY_CAPSLOCK":     58,
	"KEY_F1":           59,
	"KEY_F2":           60,
	"KEY_F3":           61,
	"KEY_F4":           62,
	"KEY_F5":           63,
	"KEY_F6":           64,
	"KEY_F7":           65,
	"KEY_F8":           66,
	"KEY_F9":           67,
	"KEY_F10":          68,
	"KEY_F11":          87,
	"KEY_F12":          88,
	"KEY_RIGHTCTRL":    97,
	"KEY_RIGHTALT":     100,
	"KEY_HOME":         102,
	"KEY_UP":           103,
	"KEY_PAGEUP":       104,
	"KEY_LEFT":         105,
	"KEY_RIGHT":        106,
	"KEY_END":          107,
	"KEY_DOWN":         108,
	"KEY_PAGEDOWN":     109,
	"KEY_INSERT":       110,
	"KEY_DELETE":       111,
	"KEY_MUTE":         113,
	"KEY_VOLUMEDOWN":   114,
	"KEY_VOLUMEUP":     115,
	"KEY_POWER":        116,
	"KEY_PAUSE":        119,
	"KEY_NEXTSONG":     163,
	"KEY_PLAYPAUSE":    164,
	"KEY_PREVIOUSSONG": 165,
	"KEY_STOPCD":       166,
	"KEY_PLAYCD":       200,
	"KEY_PAUSECD":      201,
	"BTN_LEFT":         272,
	"BTN_RIGHT":        273,
	"BTN_MIDDLE":       274,
	"BTN_SIDE":         275,
	"BTN_EXTRA":        276,
	"BTN_SOUTH":        304,
	"BTN_EAST":         305,
	"BTN_NORTH":        307,
	"BTN_WEST":         308,
	"BTN_TL":           310,
	"BTN_TR":           311,
	"BTN_TL2":          312,
	"BTN_TR2":          313,
	"BTN_SELECT":       314,
	"BTN_START":        315,
	"BTN_MODE":         316,
	"BTN_THUMBL":       317,
	"BTN_THUMBR":       318,
	"BTN_DPAD_UP":      544,
	"BTN_DPAD_DOWN":    545,
	"BTN_DPAD_LEFT":    546,
	"BTN_DPAD_RIGHT":   547,
}

// Absolute axis codes.
var absCodes = map[string]uint16{
	"ABS_X":        0,
	"ABS_Y":        1,
	"ABS_Z":        2,
	"ABS_RX":       3,
	"ABS_RY":       4,
	"ABS_RZ":       5,
	"ABS_THROTTLE": 6,
	"ABS_RUDDER":   7,
	"ABS_WHEEL":    8,
	"ABS_GAS":      9,
	"ABS_BRAKE":    10,
	"ABS_HAT0X":    16,
	"ABS_HAT0Y":    17,
	"ABS_PRESSURE": 24,
	"ABS_MISC":     40,
}

// Relative axis codes.
var relCodes = map[string]uint16{
	"REL_X":      0,
	"REL_Y":      1,
	"REL_Z":      2,
	"REL_RX":     3,
	"REL_RY":     4,
	"REL_RZ":     5,
	"REL_HWHEEL": 6,
	"REL_DIAL":   7,
	"REL_WHEEL":  8,
	"REL_MISC":   9,
}

var (
	keyNames = invert(keyCodes)
	absNames = invert(absCodes)
	relNames = invert(relCodes)
)

func invert(m map[string]uint16) map[uint16]string {
	out := make(map[uint16]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func kindOf(evType uint16) (string, bool) {
	switch evType {
	case EV_KEY:
		return KindKey, true
	case EV_ABS:
		return KindAbs, true
	case EV_REL:
		return KindRel, true
	default:
		return "", false
	}
}

func tablesFor(kind string) (map[string]uint16, map[uint16]string) {
	switch kind {
	case KindKey:
		return keyCodes, keyNames
	case KindAbs:
		return absCodes, absNames
	case KindRel:
		return relCodes, relNames
	default:
		return nil, nil
	}
}

// CodeName returns the symbolic name of a code, or its decimal value when it
// has none.
func CodeName(evType, code uint16) string {
	kind, ok := kindOf(evType)
	if !ok {
		return strconv.Itoa(int(code))
	}
	_, names := tablesFor(kind)
	if n, ok := names[code]; ok {
		return n
	}
	return strconv.Itoa(int(code))
}

// ControlPath is the canonical path for an event's control, e.g. "key/KEY_A".
func ControlPath(evType, code uint16) (string, bool) {
	kind, ok := kindOf(evType)
	if !ok {
		return "", false
	}
	return kind + "/" + CodeName(evType, code), true
}

// ParsePath splits "kind/NAME" (or "kind/123") into its event type and code.
func ParsePath(path string) (evType, code uint16, err error) {
	kind, name, ok := strings.Cut(path, "/")
	if !ok {
		return 0, 0, fmt.Errorf("control path %q: want kind/code", path)
	}
	codes, _ := tablesFor(kind)
	if codes == nil {
		return 0, 0, fmt.Errorf("control path %q: unknown kind %q", path, kind)
	}
	switch kind {
	case KindKey:
		evType = EV_KEY
	case KindAbs:
		evType = EV_ABS
	case KindRel:
		evType = EV_REL
	}
	if c, ok := codes[strings.ToUpper(name)]; ok {
		return evType, c, nil
	}
	n, err := strconv.ParseUint(name, 0, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("control path %q: unknown code %q", path, name)
	}
	return evType, uint16(n), nil
}
